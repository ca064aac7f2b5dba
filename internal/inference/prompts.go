package inference

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// NoAnswersPlaceholder stands in for the questionnaire summary when the user
// answered nothing.
const NoAnswersPlaceholder = "No additional answers were provided."

// DescribeInstruction asks for observations only. Judgment is deferred to the
// conclude phase.
const DescribeInstruction = `You are a dermatology assistant examining a photo of a skin area.
Describe only what is visible, in objective clinical terms: location if apparent, size, shape, colour, border, texture, elevation, distribution, and any secondary changes such as scaling, crusting, bleeding or swelling.
Do NOT diagnose, name possible conditions, judge severity, or give advice.
If the image does not show skin or is too unclear to assess, say so plainly.
Answer in English as a single short paragraph.`

// ChatInstruction is the system instruction for the conversational triage.
const ChatInstruction = `You are a careful health triage assistant. Ask one short question at a time to understand the user's symptoms: where, since when, how severe, what makes it better or worse, and any warning signs.
Never claim to be a doctor and never give a definitive diagnosis.
Reply in %s.
Always answer with a single JSON object and nothing else, in exactly one of these shapes:
{"text": "<your next question>", "suggestions": ["<short answer option>", "..."]}
{"triageResult": {"conclusion": "MILD" or "SERIOUS", "explanation": "<one paragraph>", "selfCareTips": ["<tip>", "..."], "doctorSuggestion": "<kind of specialist, or empty>"}}
Give a triageResult as soon as you have enough information, and immediately if any emergency warning sign is mentioned.`

const concludeTemplate = `You are a dermatology triage assistant. Based on the clinical description of a skin photo and the patient's answers below, classify the case as MILD (manageable with self-care) or SERIOUS (needs a doctor).

Clinical description:
%s

Patient answers:
%s

Write the explanation, tips and suggestion in %s.
Respond with exactly these four lines and nothing else. Keep the labels in English and uppercase:
CONCLUSION: MILD or SERIOUS
EXPLANATION: <one paragraph>
SELF_CARE_TIPS: <each tip prefixed with "* ", or NONE>
DOCTOR_SUGGESTION: <which specialist to see, or NONE>`

// ConcludePrompt combines the phase-one description, the questionnaire
// answers and the reply language into the phase-two prompt.
func ConcludePrompt(description string, answers map[string]string, lang string) string {
	return fmt.Sprintf(concludeTemplate, strings.TrimSpace(description), RenderAnswers(answers), LanguageName(lang))
}

// ChatSystemPrompt returns the chat system instruction for lang.
func ChatSystemPrompt(lang string) string {
	return fmt.Sprintf(ChatInstruction, LanguageName(lang))
}

// RenderAnswers formats questionnaire answers one per line, sorted by
// question, skipping blanks. An empty set renders as NoAnswersPlaceholder.
func RenderAnswers(answers map[string]string) string {
	keys := make([]string, 0, len(answers))
	for k, v := range answers {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return NoAnswersPlaceholder
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", strings.TrimSpace(k), strings.TrimSpace(answers[k]))
	}
	return b.String()
}

// CanonicalLanguage parses a BCP-47 tag and returns its canonical form.
// Unknown or empty input yields "en".
func CanonicalLanguage(lang string) string {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil || tag == language.Und {
		return language.English.String()
	}
	return tag.String()
}

// LanguageName returns the English name of a language tag ("de" → "German").
func LanguageName(lang string) string {
	tag := language.Make(CanonicalLanguage(lang))
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return tag.String()
}
