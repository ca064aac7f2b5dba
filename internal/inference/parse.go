package inference

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-triage-backend/internal/domain"
)

const (
	labelConclusion = "CONCLUSION:"
	labelExplain    = "EXPLANATION:"
	labelTips       = "SELF_CARE_TIPS:"
	labelDoctor     = "DOCTOR_SUGGESTION:"
)

var labels = []string{labelConclusion, labelExplain, labelTips, labelDoctor}

// ParseTriage turns the four-line labelled verdict into a TriageResult.
// Lines that carry no label continue the previous field, so tips and
// explanations may span several lines. A surrounding markdown code fence is
// ignored. NONE or an empty value leaves an optional field absent. A missing
// or unknown conclusion, or a missing explanation, fails with ErrUnparsable
// and no result.
func ParseTriage(text string) (domain.TriageResult, error) {
	fields := map[string][]string{}
	current := ""
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "```") {
			continue
		}
		if l := labelOf(line); l != "" {
			current = l
			if _, dup := fields[l]; dup {
				return domain.TriageResult{}, fmt.Errorf("%w: duplicate %s line", ErrUnparsable, strings.TrimSuffix(l, ":"))
			}
			fields[l] = []string{strings.TrimSpace(line[len(l):])}
			continue
		}
		if current != "" && line != "" {
			fields[current] = append(fields[current], line)
		}
	}

	conclusionLines, ok := fields[labelConclusion]
	if !ok {
		return domain.TriageResult{}, fmt.Errorf("%w: missing CONCLUSION", ErrUnparsable)
	}
	var out domain.TriageResult
	switch strings.ToUpper(strings.Join(conclusionLines, " ")) {
	case domain.ConclusionMild:
		out.Conclusion = domain.ConclusionMild
	case domain.ConclusionSerious:
		out.Conclusion = domain.ConclusionSerious
	default:
		return domain.TriageResult{}, fmt.Errorf("%w: unrecognized CONCLUSION %q", ErrUnparsable, strings.Join(conclusionLines, " "))
	}

	out.Explanation = joinNonEmpty(fields[labelExplain])
	if out.Explanation == "" {
		return domain.TriageResult{}, fmt.Errorf("%w: missing EXPLANATION", ErrUnparsable)
	}

	out.SelfCareTips = parseTips(fields[labelTips])

	if doc := joinNonEmpty(fields[labelDoctor]); !isNone(doc) {
		out.DoctorSuggestion = doc
	}
	return out, nil
}

func labelOf(line string) string {
	for _, l := range labels {
		if strings.HasPrefix(line, l) {
			return l
		}
	}
	return ""
}

// parseTips splits "* " items. A line without the marker continues the
// previous item.
func parseTips(lines []string) []string {
	if isNone(joinNonEmpty(lines)) {
		return nil
	}
	var tips []string
	for _, l := range lines {
		if l == "" {
			continue
		}
		if strings.HasPrefix(l, "*") {
			item := strings.TrimSpace(strings.TrimPrefix(l, "*"))
			if item != "" {
				tips = append(tips, item)
			}
			continue
		}
		if len(tips) == 0 {
			tips = append(tips, l)
			continue
		}
		tips[len(tips)-1] += " " + l
	}
	return tips
}

func joinNonEmpty(lines []string) string {
	parts := lines[:0:0]
	for _, l := range lines {
		if l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " ")
}

func isNone(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "NONE")
}
