package workflow

import (
	"strings"
	"sync"
	"text/template"

	"ai-workflows/backend/internal/completion"
	"ai-workflows/backend/pkg/models"
)

// ExampleInstruction is the request the system prompt uses to illustrate
// the expected output.
const ExampleInstruction = "When an appointment is updated send a message"

const systemPromptTemplate = `
You are an AI that converts natural language into structured automation workflows.

Given the following predefined models and actions:

EFollowupModel:
{{- range .Models}}
- {{.Name}}: {{.Description}}
{{- end}}

EFollowupAction:
{{- range .Actions}}
- {{.Name}}: {{.Description}}
{{- end}}

Convert the following user request into a structured workflow JSON that uses these triggers and actions:

User request: "{{.Example}}"

Example output:
{{.Fence}}json
{
    "name": "Appointment Update Workflow",
    "description": "Workflow triggered by appointment updates",
    "followups": {
        "followup": {
            "title": "Appointment Updated",
            "model": "appointment"
        },
        "true": {
            "followup": {
                "title": "Send a message to a patient",
                "action": "send-message"
            }
        }
    }
}
{{.Fence}}

Output type has to match the IFollowupWorkflow interface:
{{.Fence}}typescript
interface IFollowupWorkflowTree {
  true?: IFollowupWorkflowTree;
  followup: {
    title: string;
    action: EFollowupAction;
    model: EFollowupModel;
  };
}

interface IFollowupWorkflow {
  name: string;
  description?: string;
  followups: IFollowupWorkflowTree;
}
{{.Fence}}
`

var (
	promptOnce sync.Once
	promptText string
)

// SystemPrompt returns the fixed instruction sent as the system turn of
// every request. It depends only on the vocabulary tables.
func SystemPrompt() string {
	promptOnce.Do(func() {
		promptText = renderSystemPrompt(TriggerModels, Actions)
	})
	return promptText
}

func renderSystemPrompt(triggerModels, actions []models.VocabularyEntry) string {
	tmpl := template.Must(template.New("system").Parse(systemPromptTemplate))
	var b strings.Builder
	err := tmpl.Execute(&b, struct {
		Models  []models.VocabularyEntry
		Actions []models.VocabularyEntry
		Example string
		Fence   string
	}{triggerModels, actions, ExampleInstruction, "```"})
	if err != nil {
		panic("workflow: rendering system prompt: " + err.Error())
	}
	return b.String()
}

// RequestOptions carries the deployment constants of a chat request.
type RequestOptions struct {
	Model       string
	Temperature float64
	Token       string
	JSONMode    bool
}

// BuildChatRequest composes the upstream request for one instruction.
// The instruction travels as its own user message and is never spliced
// into the system prompt.
func BuildChatRequest(instruction string, opts RequestOptions) *completion.Request {
	req := &completion.Request{
		Model: opts.Model,
		Messages: []completion.Message{
			{Role: completion.RoleSystem, Content: SystemPrompt()},
			{Role: completion.RoleUser, Content: instruction},
		},
		Temperature: opts.Temperature,
		Metadata:    completion.Metadata{Token: opts.Token},
	}
	if opts.JSONMode {
		req.ResponseFormat = &completion.ResponseFormat{Type: "json_object"}
	}
	return req
}
