package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Outcome is the three-state result of deterministic classification.
// The zero value is OutcomeEscalate so an unset outcome never reads as allow.
type Outcome int

const (
	// OutcomeEscalate means no pattern decided; the caller must ask the backend.
	OutcomeEscalate Outcome = iota
	// OutcomeAllow means a whitelist prefix matched.
	OutcomeAllow
	// OutcomeDeny means a denial pattern matched.
	OutcomeDeny
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeDeny:
		return "deny"
	case OutcomeEscalate:
		return "escalate"
	default:
		return "unknown"
	}
}

// Pattern is a single denial rule.
type Pattern struct {
	// Name is the rule family, e.g. "root-deletion".
	Name string
	// Pattern is the regex pattern string.
	Pattern string
	// Compiled is the compiled regex.
	Compiled *regexp.Regexp
	// Description describes why this pattern is denied.
	Description string
	// Source indicates where this pattern came from.
	Source string // "builtin", "config"
}

// Match is the result of classifying a command against a PatternSet.
type Match struct {
	Outcome Outcome
	// Rule is the matching pattern (deny) or prefix (allow).
	Rule string
	// Name is the rule family for deny matches.
	Name string
	// Description is a human-readable reason for deny matches.
	Description string
}

// Verdict converts a decided match into a pattern verdict.
// ok is false when the match must be escalated.
func (m Match) Verdict() (v Verdict, ok bool) {
	switch m.Outcome {
	case OutcomeDeny:
		return Verdict{
			IsSafe:         false,
			Confidence:     1.0,
			Rationale:      "matched denial pattern: " + m.Description,
			Source:         SourcePattern,
			MatchedPattern: m.Rule,
		}, true
	case OutcomeAllow:
		return Verdict{
			IsSafe:         true,
			Confidence:     1.0,
			Rationale:      "matched whitelist prefix: " + m.Rule,
			Source:         SourcePattern,
			MatchedPattern: m.Rule,
		}, true
	default:
		return Verdict{}, false
	}
}

type builtinRule struct {
	name        string
	description string
	patterns    []string
}

// builtinDeny is evaluated in order; the first match wins.
var builtinDeny = []builtinRule{
	{"root-deletion", "recursive deletion of the filesystem root or home directory", []string{
		`\brm\s+(-\S+\s+)*(/\*?|~/?|\$HOME/?)(\s|;|&|\||$)`,
	}},
	{"no-preserve-root", "deletion with root protection disabled", []string{
		`--no-preserve-root\b`,
	}},
	{"raw-device-write", "raw write to a block device", []string{
		`\bdd\b[^;&|]*\bof=/dev/(sd|hd|nvme|xvd|vd|mmcblk|disk|loop)`,
		`>\s*/dev/(sd|hd|nvme|xvd|vd|mmcblk|disk)[a-z0-9]*`,
		`\bmkfs(\.[a-z0-9]+)?\b`,
	}},
	{"recursive-world-writable", "recursive world-writable permission change", []string{
		`\bchmod\s+(.*\s)?(-[a-zA-Z]*R[a-zA-Z]*|--recursive)\s+(.*\s)?(0?777|a\+rwx|ugo\+rwx)(\s|$)`,
		`\bchmod\s+(.*\s)?(0?777|a\+rwx|ugo\+rwx)\s+(.*\s)?(-[a-zA-Z]*R[a-zA-Z]*|--recursive)(\s|$)`,
	}},
	{"fork-bomb", "shell fork bomb", []string{
		`[\w:]+\(\)\s*\{\s*[\w:]+\s*\|\s*[\w:]+\s*&\s*\}`,
	}},
	{"pipe-to-interpreter", "downloaded content piped into an interpreter", []string{
		`\b(curl|wget)\b.*\|\s*(sudo\s+)?(\S*/)?(sh|bash|zsh|ksh|dash|fish|python[0-9.]*|perl|ruby|node)\b`,
	}},
}

// builtinWhitelist holds read-only commands allowed without a model round-trip.
var builtinWhitelist = []string{
	"ls",
	"pwd",
	"whoami",
	"date",
	"echo",
	"cat",
	"head",
	"tail",
	"wc",
	"df",
	"du",
	"uname",
	"hostname",
	"uptime",
	"which",
	"ps",
	"git status",
	"git log",
	"git diff",
	"git branch",
}

// shellControl matches operators that chain, redirect or substitute commands.
// A command containing any of them is never whitelisted.
var shellControl = regexp.MustCompile("[;&|<>`\n]|\\$\\(")

// PatternSet is the immutable deny/whitelist configuration shared by all
// evaluations. It holds no locks; it is never mutated after construction.
type PatternSet struct {
	deny      []*Pattern
	whitelist []string
}

// NewPatternSet builds a PatternSet from the builtin tables plus extra deny
// regexes and whitelist prefixes. Extra deny patterns are checked after the
// builtins, in the order given.
func NewPatternSet(extraDeny, extraWhitelist []string) (*PatternSet, error) {
	s := &PatternSet{}
	for _, rule := range builtinDeny {
		s.deny = append(s.deny, compilePatterns(rule, "builtin")...)
	}
	for _, p := range extraDeny {
		compiled, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid deny pattern %q: %w", p, err)
		}
		s.deny = append(s.deny, &Pattern{
			Name:        "custom",
			Pattern:     p,
			Compiled:    compiled,
			Description: "custom deny pattern " + p,
			Source:      "config",
		})
	}

	s.whitelist = append(s.whitelist, builtinWhitelist...)
	for _, prefix := range extraWhitelist {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			s.whitelist = append(s.whitelist, prefix)
		}
	}
	return s, nil
}

func compilePatterns(rule builtinRule, source string) []*Pattern {
	result := make([]*Pattern, 0, len(rule.patterns))
	for _, p := range rule.patterns {
		compiled, err := regexp.Compile(p)
		if err != nil {
			// Built-in patterns must always be valid.
			panic(fmt.Sprintf("invalid builtin pattern %q: %v", p, err))
		}
		result = append(result, &Pattern{
			Name:        rule.name,
			Pattern:     p,
			Compiled:    compiled,
			Description: rule.description,
			Source:      source,
		})
	}
	return result
}

// Classify checks a command against the deny patterns, then the whitelist.
// It is a pure function of the command and safe for concurrent use.
func (s *PatternSet) Classify(command string) Match {
	cmd := strings.TrimSpace(command)

	// 1. Denial patterns, first match wins
	for _, p := range s.deny {
		if p.Compiled.MatchString(cmd) {
			return Match{
				Outcome:     OutcomeDeny,
				Rule:        p.Pattern,
				Name:        p.Name,
				Description: p.Description,
			}
		}
	}

	// 2. Whitelist prefixes on simple commands only
	if !shellControl.MatchString(cmd) {
		for _, prefix := range s.whitelist {
			if cmd == prefix || strings.HasPrefix(cmd, prefix+" ") {
				return Match{Outcome: OutcomeAllow, Rule: prefix}
			}
		}
	}

	// 3. Inconclusive
	return Match{Outcome: OutcomeEscalate}
}

// DenyPatterns returns the deny patterns in evaluation order.
func (s *PatternSet) DenyPatterns() []*Pattern {
	out := make([]*Pattern, len(s.deny))
	copy(out, s.deny)
	return out
}

// Whitelist returns the whitelist prefixes.
func (s *PatternSet) Whitelist() []string {
	out := make([]string, len(s.whitelist))
	copy(out, s.whitelist)
	return out
}

var defaultSet = mustDefaultSet()

func mustDefaultSet() *PatternSet {
	s, err := NewPatternSet(nil, nil)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultPatternSet returns the builtin-only pattern set.
func DefaultPatternSet() *PatternSet {
	return defaultSet
}

// PatternExport represents the exported pattern set for external tools.
type PatternExport struct {
	Version     string                `json:"version"`
	GeneratedAt time.Time             `json:"generated_at"`
	SHA256      string                `json:"sha256"`
	Deny        []PatternDetails      `json:"deny"`
	Whitelist   []string              `json:"whitelist"`
	Metadata    PatternExportMetadata `json:"metadata"`
}

// PatternDetails represents a single deny pattern for export.
type PatternDetails struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
}

// PatternExportMetadata contains summary information about the export.
type PatternExportMetadata struct {
	DenyCount      int `json:"deny_count"`
	WhitelistCount int `json:"whitelist_count"`
}

// Export exports the set in evaluation order.
func (s *PatternSet) Export() *PatternExport {
	export := &PatternExport{
		Version:     "1.0.0",
		GeneratedAt: time.Now().UTC(),
		Deny:        make([]PatternDetails, 0, len(s.deny)),
		Whitelist:   s.Whitelist(),
		Metadata: PatternExportMetadata{
			DenyCount:      len(s.deny),
			WhitelistCount: len(s.whitelist),
		},
	}
	for _, p := range s.deny {
		export.Deny = append(export.Deny, PatternDetails{
			Name:        p.Name,
			Pattern:     p.Pattern,
			Description: p.Description,
			Source:      p.Source,
		})
	}
	export.SHA256 = s.ComputeHash()
	return export
}

// ComputeHash returns a deterministic hash of all patterns for version tracking.
func (s *PatternSet) ComputeHash() string {
	all := make([]string, 0, len(s.deny)+len(s.whitelist))
	for _, p := range s.deny {
		all = append(all, "deny:"+p.Pattern)
	}
	for _, w := range s.whitelist {
		all = append(all, "allow:"+w)
	}
	sort.Strings(all)

	h := sha256.New()
	for _, p := range all {
		h.Write([]byte(p))
		h.Write([]byte{0}) // Separator
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ExportJSON returns the patterns as a JSON string.
func (s *PatternSet) ExportJSON() (string, error) {
	data, err := json.MarshalIndent(s.Export(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
