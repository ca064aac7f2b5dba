package domain

// Triage severities.
const (
	ConclusionMild    = "MILD"
	ConclusionSerious = "SERIOUS"
)

// TriageResult is the final severity classification with guidance.
// Optional fields are omitted from JSON when absent.
type TriageResult struct {
	Conclusion       string   `json:"conclusion"`
	Explanation      string   `json:"explanation"`
	SelfCareTips     []string `json:"selfCareTips,omitempty"`
	DoctorSuggestion string   `json:"doctorSuggestion,omitempty"`
}

// Valid reports whether the result carries a known conclusion and an explanation.
func (r TriageResult) Valid() bool {
	return (r.Conclusion == ConclusionMild || r.Conclusion == ConclusionSerious) && r.Explanation != ""
}

// AnalysisPayload is a complete single-shot analysis request, as sent to
// analyze-skin and as stored in the offline queue.
type AnalysisPayload struct {
	ImageData  string            `json:"imageData"` // base64
	MIMEType   string            `json:"mimeType"`
	Language   string            `json:"language"`
	MCQAnswers map[string]string `json:"mcqAnswers,omitempty"`
}

// ChatReply is what one chat turn yields: either a follow-up question with
// suggested answers, or a terminal triage result.
type ChatReply struct {
	Text         string        `json:"text,omitempty"`
	Suggestions  []string      `json:"suggestions,omitempty"`
	TriageResult *TriageResult `json:"triageResult,omitempty"`
}
