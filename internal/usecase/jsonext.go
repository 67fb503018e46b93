package usecase

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Judges are asked for JSON but frequently wrap it in markdown fences or
// leading prose. extractJSON pulls the first JSON object out of a raw reply
// so every call site parses the same way instead of slicing strings ad hoc.
func extractJSON(raw string) (gjson.Result, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return gjson.Result{}, false
	}

	// Strip a fenced code block if present (```json ... ``` or ``` ... ```).
	if idx := strings.Index(trimmed, "```"); idx != -1 {
		rest := trimmed[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end != -1 {
			trimmed = strings.TrimSpace(rest[:end])
		} else {
			trimmed = strings.TrimSpace(rest)
		}
	}

	// Fall back to the outermost brace pair when prose surrounds the object.
	if !strings.HasPrefix(trimmed, "{") {
		start := strings.Index(trimmed, "{")
		end := strings.LastIndex(trimmed, "}")
		if start == -1 || end == -1 || end < start {
			return gjson.Result{}, false
		}
		trimmed = trimmed[start : end+1]
	}

	if !gjson.Valid(trimmed) {
		return gjson.Result{}, false
	}
	return gjson.Parse(trimmed), true
}

// parseJudgeScore extracts a numeric field from a judge reply, clamped to
// [0,100]. The boolean reports whether a usable value was found; the caller
// supplies its own documented fallback on false.
func parseJudgeScore(raw, field string) (float64, bool) {
	obj, ok := extractJSON(raw)
	if !ok {
		return 0, false
	}
	v := obj.Get(field)
	if !v.Exists() || v.Type != gjson.Number {
		return 0, false
	}
	score := v.Float()
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, true
}

// parseJudgeBool extracts a boolean field from a judge reply. Accepts real
// booleans and the string forms judges tend to emit ("yes"/"no",
// "true"/"false").
func parseJudgeBool(raw, field string) (bool, bool) {
	obj, ok := extractJSON(raw)
	if ok {
		v := obj.Get(field)
		switch {
		case v.Type == gjson.True:
			return true, true
		case v.Type == gjson.False:
			return false, true
		case v.Type == gjson.String:
			if b, ok := boolWord(v.String()); ok {
				return b, true
			}
		}
	}

	// Some judges answer with a bare word despite the JSON instruction.
	if b, ok := boolWord(raw); ok {
		return b, true
	}
	return false, false
}

func boolWord(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "relevant":
		return true, true
	case "no", "false", "irrelevant", "not relevant":
		return false, true
	}
	return false, false
}
