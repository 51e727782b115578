// Package models defines the wire types of the AI workflow service
package models

import "time"

// GenerateWorkflowRequest is the body of POST /ai-workflows
type GenerateWorkflowRequest struct {
	Prompt string `json:"prompt"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	Service           string    `json:"service"`
	Version           string    `json:"version"`
	VocabularyVersion string    `json:"vocabulary_version"`
}

// VocabularyEntry is one enumerated trigger model or action.
type VocabularyEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Vocabulary is the published trigger model and action table.
type Vocabulary struct {
	Version       string            `json:"version"`
	TriggerModels []VocabularyEntry `json:"trigger_models"`
	Actions       []VocabularyEntry `json:"actions"`
}
