package services

import "github.com/tbourn/go-triage-backend/internal/domain"

// SanitizeHistory repairs a stored conversation so that it starts with a
// user turn, strictly alternates roles, and ends with a model turn. Repairs
// only drop turns: leading model turns are dropped, a run of same-role turns
// keeps its latest member, and a trailing user turn is dropped. Turns with an
// unknown role are discarded. The input is not modified.
func SanitizeHistory(in []domain.ChatTurn) []domain.ChatTurn {
	out := make([]domain.ChatTurn, 0, len(in))
	for _, t := range in {
		if t.Role != domain.RoleUser && t.Role != domain.RoleModel {
			continue
		}
		if len(out) == 0 && t.Role == domain.RoleModel {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == t.Role {
			out[n-1] = copyTurn(t)
			continue
		}
		out = append(out, copyTurn(t))
	}
	if n := len(out); n > 0 && out[n-1].Role == domain.RoleUser {
		out = out[:n-1]
	}
	return out
}

func copyTurn(t domain.ChatTurn) domain.ChatTurn {
	parts := make([]string, len(t.Parts))
	copy(parts, t.Parts)
	return domain.ChatTurn{Role: t.Role, Parts: parts}
}
