package utils

import (
	"regexp"
	"strings"
)

// ansiRegex matches CSI sequences (colors, cursor movement) and OSC
// sequences (window titles, hyperlinks) terminated by BEL or ST.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)`)

// StripANSI removes ANSI escape codes from a string.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// SanitizeInput removes ANSI codes and other control characters (except newlines/tabs)
// that could mess up terminal display. Model replies and command output are
// untrusted and pass through here before rendering.
func SanitizeInput(s string) string {
	s = StripANSI(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		if (r < 0x20 && r != '\n' && r != '\t') || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// SingleLine sanitizes s and collapses it to one line for table cells.
func SingleLine(s string, max int) string {
	s = strings.Join(strings.Fields(SanitizeInput(s)), " ")
	if max > 0 && len([]rune(s)) > max {
		r := []rune(s)
		if max <= 3 {
			return string(r[:max])
		}
		return string(r[:max-3]) + "..."
	}
	return s
}
