package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoObject = errors.New("no JSON object found in model output")

// ExtractFunc locates and parses the JSON object inside a model answer.
type ExtractFunc func(content string) (json.RawMessage, error)

// ExtractOuter takes everything from the first '{' through the last '}'
// and parses it. Stray braces in surrounding prose break it.
func ExtractOuter(content string) (json.RawMessage, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < start {
		return nil, &MalformedOutputError{Content: content, Err: errNoObject}
	}
	raw, err := parseObject(content[start : end+1])
	if err != nil {
		return nil, &MalformedOutputError{Content: content, Err: err}
	}
	return raw, nil
}

// ExtractBalanced returns the first top-level brace-balanced span that
// parses as a JSON object. Braces inside JSON strings do not count toward
// balance, and a balanced span that fails to parse is skipped as a whole.
func ExtractBalanced(content string) (json.RawMessage, error) {
	var firstErr error
	for start := strings.IndexByte(content, '{'); start >= 0; {
		resume := start + 1
		// an unbalanced start can still be followed by a balanced object,
		// e.g. prose containing a lone quote before the JSON
		if end := matchBrace(content, start); end >= 0 {
			raw, err := parseObject(content[start : end+1])
			if err == nil {
				return raw, nil
			}
			if firstErr == nil {
				firstErr = err
			}
			// objects nested in a rejected span are never top-level
			resume = end + 1
		}
		next := strings.IndexByte(content[resume:], '{')
		if next < 0 {
			break
		}
		start = resume + next
	}
	if firstErr == nil {
		firstErr = errNoObject
	}
	return nil, &MalformedOutputError{Content: content, Err: firstErr}
}

// matchBrace returns the index of the '}' closing the '{' at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseObject(candidate string) (json.RawMessage, error) {
	dec := json.NewDecoder(strings.NewReader(candidate))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return nil, errors.New("invalid JSON: trailing data after object")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

// Strategy returns the extraction function registered under name.
func Strategy(name string) (ExtractFunc, error) {
	switch name {
	case "balanced", "":
		return ExtractBalanced, nil
	case "outer":
		return ExtractOuter, nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", name)
	}
}
