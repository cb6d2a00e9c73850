package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shai-cli/shai/internal/core"
	"github.com/shai-cli/shai/internal/utils"
)

// Renderer turns pipeline results into console text.
type Renderer struct {
	theme   *Theme
	styles  *Styles
	width   int
	unicode bool
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithTheme overrides the palette.
func WithTheme(t *Theme) RendererOption {
	return func(r *Renderer) {
		if t != nil {
			r.theme = t
		}
	}
}

// WithWidth fixes the render width instead of detecting it.
func WithWidth(w int) RendererOption {
	return func(r *Renderer) { r.width = ClampWidth(w) }
}

// WithUnicode forces unicode glyphs on or off.
func WithUnicode(on bool) RendererOption {
	return func(r *Renderer) { r.unicode = on }
}

// NewRenderer creates a Renderer sized to the current terminal.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		width:   ClampWidth(DetectWidth()),
		unicode: SupportsUnicode(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.theme == nil {
		r.theme = DefaultTheme()
	}
	r.styles = NewStyles(r.theme)
	if !r.unicode {
		r.styles.Panel = r.styles.Panel.Border(ASCIIBorder)
		r.styles.CommandBox = r.styles.CommandBox.Border(ASCIIBorder)
	}
	return r
}

// Width returns the render width.
func (r *Renderer) Width() int { return r.width }

func (r *Renderer) glyph(unicode, ascii string) string {
	if r.unicode {
		return unicode
	}
	return ascii
}

// Banner renders the title panel and the echoed query.
func (r *Renderer) Banner(query string) string {
	title := r.styles.Title.Render("shAI")
	if r.unicode {
		title = lipgloss.NewStyle().Bold(true).Render(
			GradientText("shAI", []lipgloss.Color{r.theme.Blue, r.theme.Mauve}))
	}
	panel := r.styles.Panel.Width(r.width - 2).Render(
		title + " - " + r.styles.Subtitle.Render("Converting your query to bash"))
	line := "Query: " + r.styles.Query.Render(utils.SanitizeInput(query))
	return lipgloss.JoinVertical(lipgloss.Left, panel, line)
}

// Section renders a bold step heading such as "Generating command...".
func (r *Renderer) Section(text string) string {
	return r.styles.Section.Render(text)
}

// Command renders a generated command in a bordered box.
func (r *Renderer) Command(command string) string {
	display := utils.SanitizeInput(command)
	inner := r.width - 6
	lines := strings.Split(display, "\n")
	for i, l := range lines {
		lines[i] = utils.SingleLine(l, inner)
	}
	return r.styles.CommandBox.Render(strings.Join(lines, "\n"))
}

// VerdictLabel names the badge a verdict renders with.
func VerdictLabel(v core.Verdict) string {
	switch {
	case v.Source == core.SourceError:
		return "CHECK FAILED"
	case v.Gated:
		return "LOW CONFIDENCE"
	case v.IsSafe:
		return "SAFE"
	default:
		return "UNSAFE"
	}
}

func (r *Renderer) badgeStyle(v core.Verdict) lipgloss.Style {
	switch {
	case v.Source == core.SourceError:
		return r.styles.BadgeError
	case v.Gated:
		return r.styles.BadgeGated
	case v.IsSafe:
		return r.styles.BadgeSafe
	default:
		return r.styles.BadgeUnsafe
	}
}

// Verdict renders the badge, source and confidence, followed by the
// rationale when one is attached.
func (r *Renderer) Verdict(v core.Verdict) string {
	badge := r.badgeStyle(v).Render(VerdictLabel(v))
	meta := r.styles.Dimmed.Render(fmt.Sprintf("  %s, confidence %.2f", v.Source, v.Confidence))
	out := badge + meta
	if v.Rationale != "" {
		out += "\n" + r.styles.Dimmed.Render(utils.SanitizeInput(v.Rationale))
	}
	return out
}

// Passed renders the post-check status line.
func (r *Renderer) Passed(v core.Verdict) string {
	if v.IsSafe {
		return r.styles.Success.Render(r.glyph("✓", "OK") + " Command passed safety check")
	}
	return r.styles.Failure.Render(r.glyph("⚠️ ", "!!") + " Command may be unsafe! Execution aborted.")
}

// Explanation renders the risk explanation for a rejected command.
func (r *Renderer) Explanation(text string) string {
	body := lipgloss.NewStyle().Width(r.width - 4).Render(utils.SanitizeInput(text))
	return lipgloss.JoinVertical(lipgloss.Left, r.styles.Section.Render("Why this is risky:"), body)
}

// Execution renders the status line and output of an execution report.
func (r *Renderer) Execution(report *core.ExecutionReport) string {
	var b strings.Builder
	if report.Success {
		b.WriteString(r.styles.Success.Render(r.glyph("✓", "OK") + " Command executed successfully"))
	} else {
		b.WriteString(r.styles.Failure.Render(r.glyph("✗", "FAIL") + " Command execution failed"))
	}
	for _, res := range report.Results {
		if len(report.Results) > 1 {
			b.WriteString("\n" + r.styles.Dimmed.Render(
				fmt.Sprintf("$ %s  (exit %d, %s)", utils.SingleLine(res.Command, r.width-20), res.ExitCode, res.Duration.Round(time.Millisecond))))
		}
		if out := strings.TrimRight(res.Stdout, "\n"); out != "" {
			b.WriteString("\n" + r.styles.Section.Render("Output:") + "\n")
			b.WriteString(utils.SanitizeInput(out))
		}
		if errOut := strings.TrimRight(res.Stderr, "\n"); errOut != "" {
			b.WriteString("\n" + r.styles.Failure.MarginTop(1).Render("Errors:") + "\n")
			b.WriteString(utils.SanitizeInput(errOut))
		}
	}
	return b.String()
}

// Skipped renders the notice shown when execution is disabled.
func (r *Renderer) Skipped() string {
	return r.styles.Subtitle.MarginTop(1).Render("Command not executed (--no-execute flag was used)")
}

// Rejected renders the notice for a query the intent filter turned away.
func (r *Renderer) Rejected(iv core.IntentVerdict) string {
	msg := "This doesn't look like a shell task"
	if iv.Reason != "" {
		msg += " (" + iv.Reason + ")"
	}
	return r.styles.Failure.Render(r.glyph("✗ ", "") + msg)
}
