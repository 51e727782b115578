package models

// WorkflowDocument is the shape the system prompt asks the model to emit.
// Nothing enforces it: callers receive whatever object the model produced.
type WorkflowDocument struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Followups   *WorkflowNode `json:"followups"`
}

// WorkflowNode is one step of the followup chain. True holds the step that
// runs when this one succeeds.
type WorkflowNode struct {
	Followup Followup      `json:"followup"`
	True     *WorkflowNode `json:"true,omitempty"`
}

// Followup describes a single step. A trigger step sets Model, an effect
// step sets Action.
type Followup struct {
	Title  string `json:"title"`
	Action string `json:"action,omitempty"`
	Model  string `json:"model,omitempty"`
}

// Steps flattens the chain starting at the root followup.
func (d *WorkflowDocument) Steps() []Followup {
	var steps []Followup
	for node := d.Followups; node != nil; node = node.True {
		steps = append(steps, node.Followup)
	}
	return steps
}
