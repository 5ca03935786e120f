package provider

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParseJSONReply strips markdown code fences and unmarshals raw LLM
// output into out. A parse failure is never returned to the caller as a
// fatal error by itself — callers wrap this in their own "no result,
// count it" handling per §7's parse-error taxonomy; ParseJSONReply just
// reports ok=false when nothing usable could be recovered.
//
// Generalizes the teacher's pkg/extraction/parser.go (ParseResponse,
// stripCodeFence) from its fixed entities/relations shape to any target
// type via generics.
func ParseJSONReply[T any](raw string) (result T, ok bool) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return result, false
	}

	if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
		return result, true
	}

	if repaired, found := repairJSONObject(cleaned); found {
		if err := json.Unmarshal([]byte(repaired), &result); err == nil {
			return result, true
		}
	}

	return result, false
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// objectPattern matches the outermost-looking top-level {...} or [...]
// block in a response that also contains leading/trailing prose the
// model added despite instructions not to.
var objectPattern = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)

func repairJSONObject(s string) (string, bool) {
	m := objectPattern.FindString(s)
	if m == "" {
		return "", false
	}
	return m, true
}
