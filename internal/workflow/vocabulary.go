package workflow

import "ai-workflows/backend/pkg/models"

// VocabularyVersion identifies the trigger model and action tables below.
// Bump it whenever an entry is added, removed or reworded.
const VocabularyVersion = "2024.1"

// TriggerModels enumerates the events that can start a workflow.
var TriggerModels = []models.VocabularyEntry{
	{Name: "activity", Description: "When an activity occurs"},
	{Name: "appointment", Description: "When an appointment is scheduled or updated"},
	{Name: "appointmentType", Description: "When an appointment type is defined"},
	{Name: "availability", Description: "When availability changes"},
	{Name: "billingTransaction", Description: "When a billing transaction is processed"},
	{Name: "broadcast", Description: "When a broadcast message is sent"},
	{Name: "campaign", Description: "When a campaign is launched"},
	{Name: "chatActivity", Description: "When chat activity is detected"},
	{Name: "chatActivityReason", Description: "When a chat activity reason is logged"},
	{Name: "diagnosis", Description: "When a diagnosis is made"},
	{Name: "estimate", Description: "When an estimate is created"},
	{Name: "facility", Description: "When a facility is updated"},
	{Name: "feedbackResponse", Description: "When feedback is received"},
	{Name: "fileUpload", Description: "When a file is uploaded"},
	{Name: "group", Description: "When a group is modified"},
	{Name: "hl7message", Description: "When an HL7 message is received"},
	{Name: "insurance", Description: "When insurance information is updated"},
	{Name: "integrator", Description: "When an integrator event occurs"},
	{Name: "intent", Description: "When an intent is recognized"},
	{Name: "lumaBotFlow", Description: "When a LumaBot flow is initiated"},
	{Name: "lumaBotFlowTemplate", Description: "When a LumaBot flow template is used"},
	{Name: "message", Description: "When a message is sent"},
	{Name: "messageTemplate", Description: "When a message template is applied"},
	{Name: "messageTemplatePartial", Description: "When a partial message template is used"},
	{Name: "offer", Description: "When an offer is made"},
	{Name: "outboundNumber", Description: "When an outbound number is used"},
	{Name: "patient", Description: "When patient information is updated"},
	{Name: "patientForm", Description: "When a patient form is submitted"},
	{Name: "patientFormTemplate", Description: "When a patient form template is used"},
	{Name: "patientMessageTemplate", Description: "When a patient message template is sent"},
	{Name: "procedure", Description: "When a procedure is performed"},
	{Name: "provider", Description: "When a provider is updated"},
	{Name: "recall", Description: "When a recall is initiated"},
	{Name: "referral", Description: "When a referral is made"},
	{Name: "reminder", Description: "When a reminder is set"},
	{Name: "schedule", Description: "When a schedule is updated"},
	{Name: "telehealth", Description: "When a telehealth session is scheduled"},
	{Name: "user", Description: "When a user action is detected"},
	{Name: "waitingRoomPatient", Description: "When a patient enters the waiting room"},
	{Name: "waitlist", Description: "When a patient joins the waitlist"},
}

// Actions enumerates the effects a workflow step can perform.
var Actions = []models.VocabularyEntry{
	{Name: "send-message", Description: "Send a message to a patient"},
	{Name: "alert-staff", Description: "Alert staff members"},
	{Name: "start-bot", Description: "Start a bot session"},
	{Name: "https-webhook", Description: "Trigger an HTTPS webhook"},
	{Name: "confirm-appointment", Description: "Confirm an appointment"},
	{Name: "cancel-appointment", Description: "Cancel an appointment"},
	{Name: "arrive-appointment", Description: "Mark an appointment as arrived"},
	{Name: "create-referral", Description: "Create a referral"},
	{Name: "cancel-referral", Description: "Cancel a referral"},
	{Name: "open-chat", Description: "Open a chat session"},
	{Name: "close-chat", Description: "Close a chat session"},
	{Name: "internal-chat", Description: "Send an internal chat message"},
	{Name: "join-waitlist", Description: "Add a patient to the waitlist"},
	{Name: "leave-waitlist", Description: "Remove a patient from the waitlist"},
	{Name: "join-waiting-room", Description: "Add a patient to the waiting room"},
	{Name: "send-physical-mail", Description: "Send physical mail to a patient"},
	{Name: "create-patient-in-integrator", Description: "Create a patient in the integrator"},
	{Name: "execute-javascript", Description: "Execute a JavaScript function"},
	{Name: "assign-chat", Description: "Assign a chat to a staff member"},
	{Name: "send-slack-message", Description: "Send a message to a Slack channel"},
	{Name: "send-teams-message", Description: "Send a message to a Teams channel"},
	{Name: "create-salesforce-record", Description: "Create a record in Salesforce"},
	{Name: "wait", Description: "Wait for a specified duration"},
	{Name: "if", Description: "Conditional logic execution"},
	{Name: "none", Description: "No action"},
	{Name: "set-context", Description: "Set a context for the workflow"},
	{Name: "execute-assistant-tool", Description: "Execute an assistant tool"},
	{Name: "invoke-integrator-api", Description: "Call an integrator API"},
	{Name: "invoke-rest-api", Description: "Call a REST API"},
	{Name: "invoke-fhir-api", Description: "Call a FHIR API"},
	{Name: "invoke-navigator", Description: "Use the Spark Navigator"},
}

var (
	triggerModelSet = nameSet(TriggerModels)
	actionSet       = nameSet(Actions)
)

// IsTriggerModel reports whether name is a known trigger model.
func IsTriggerModel(name string) bool {
	_, ok := triggerModelSet[name]
	return ok
}

// IsAction reports whether name is a known action.
func IsAction(name string) bool {
	_, ok := actionSet[name]
	return ok
}

// UnknownTerms lists the models and actions in doc that are not part of the
// vocabulary, in step order. It is informational and never rejects a document.
func UnknownTerms(doc *models.WorkflowDocument) []string {
	var unknown []string
	for _, step := range doc.Steps() {
		if step.Model != "" && !IsTriggerModel(step.Model) {
			unknown = append(unknown, "model:"+step.Model)
		}
		if step.Action != "" && !IsAction(step.Action) {
			unknown = append(unknown, "action:"+step.Action)
		}
	}
	return unknown
}

// CurrentVocabulary returns a copy of the published tables.
func CurrentVocabulary() models.Vocabulary {
	return models.Vocabulary{
		Version:       VocabularyVersion,
		TriggerModels: append([]models.VocabularyEntry(nil), TriggerModels...),
		Actions:       append([]models.VocabularyEntry(nil), Actions...),
	}
}

func nameSet(entries []models.VocabularyEntry) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e.Name] = struct{}{}
	}
	return set
}
