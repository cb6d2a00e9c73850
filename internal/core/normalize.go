package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FallbackConfidence is the confidence assigned to heuristic readings of
// replies that could not be parsed as structured judgments.
const FallbackConfidence = 0.5

// stripChars are removed from both ends of a reply after fence stripping.
const stripChars = "`\"'"

// CleanResponse removes formatting a backend wraps around its reply.
// Stages run in a fixed order: fence lines, then quote/backtick characters.
func CleanResponse(raw string) string {
	return stripQuotes(stripFence(strings.TrimSpace(raw)))
}

// stripFence drops the first and last line of a reply opened with a code
// fence (optionally tagged with a language), when it has at least three lines.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 3 {
		return s
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}

func stripQuotes(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), stripChars))
}

// CleanCommand removes formatting around a generated shell command. Unlike
// CleanResponse it keeps quotes that belong to the command: backticks are
// trimmed from both ends, and a quote is removed only when the same quote
// character opens and closes the text and appears nowhere inside it.
func CleanCommand(raw string) string {
	s := strings.TrimSpace(strings.Trim(stripFence(strings.TrimSpace(raw)), "`"))
	if len(s) >= 2 {
		q := s[0]
		if (q == '\'' || q == '"') && s[len(s)-1] == q && !strings.ContainsRune(s[1:len(s)-1], rune(q)) {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// structuredJudgment is the JSON shape requested from the backend.
// Values are decoded loosely because models return "true" and "0.8" as strings.
type structuredJudgment struct {
	IsSafe     json.RawMessage `json:"is_safe"`
	Confidence json.RawMessage `json:"confidence"`
	Reasoning  json.RawMessage `json:"reasoning"`
	Reason     json.RawMessage `json:"reason"`
}

// Normalize parses a raw safety judgment into a Verdict. It never fails:
// text that cannot be read as a structured judgment degrades to the
// heuristic reading with SourceFallback and FallbackConfidence.
func Normalize(raw string) (v Verdict) {
	text := CleanResponse(raw)

	defer func() {
		if r := recover(); r != nil {
			v = fallbackVerdict(text)
		}
	}()

	if parsed, err := parseStructured(text); err == nil {
		return parsed
	}
	return fallbackVerdict(text)
}

func parseStructured(text string) (Verdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Verdict{}, fmt.Errorf("no json object in judgment")
	}
	obj := text[start : end+1]

	var sj structuredJudgment
	if err := json.Unmarshal([]byte(obj), &sj); err != nil {
		return Verdict{}, fmt.Errorf("decoding judgment: %w", err)
	}

	v := Verdict{Source: SourceModel, Confidence: 1.0}

	// Missing is_safe fails closed.
	if present(sj.IsSafe) {
		safe, err := decodeBool(sj.IsSafe)
		if err != nil {
			return Verdict{}, fmt.Errorf("is_safe: %w", err)
		}
		v.IsSafe = safe
	}

	if present(sj.Confidence) {
		c, err := decodeFloat(sj.Confidence)
		if err != nil {
			return Verdict{}, fmt.Errorf("confidence: %w", err)
		}
		v.Confidence = clamp01(c)
	}

	reasoning := sj.Reasoning
	if !present(reasoning) {
		reasoning = sj.Reason
	}
	if present(reasoning) {
		v.Rationale = decodeString(reasoning)
	}
	return v, nil
}

func fallbackVerdict(text string) Verdict {
	lower := strings.ToLower(text)
	return Verdict{
		IsSafe:     strings.Contains(lower, "true") && !strings.Contains(lower, "false"),
		Confidence: FallbackConfidence,
		Rationale:  text,
		Source:     SourceFallback,
	}
}

// ParseBinary reads a YES/NO classification reply. There is no confidence
// in this mode; any reply containing YES is affirmative.
func ParseBinary(raw string) bool {
	return strings.Contains(strings.ToUpper(strings.TrimSpace(raw)), "YES")
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func decodeBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, fmt.Errorf("not a boolean: %s", raw)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "safe":
		return true, nil
	case "false", "no", "unsafe":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

func decodeFloat(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}

func decodeString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func clamp01(f float64) float64 {
	switch {
	case f != f: // NaN
		return 0
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
