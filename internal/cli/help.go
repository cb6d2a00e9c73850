package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shai-cli/shai/internal/ui"
)

// Catppuccin Mocha color palette
var (
	colorMauve   = lipgloss.Color("#cba6f7") // Title
	colorBlue    = lipgloss.Color("#89b4fa") // Section headers
	colorGreen   = lipgloss.Color("#a6e3a1") // Commands
	colorYellow  = lipgloss.Color("#f9e2af") // Flags
	colorRed     = lipgloss.Color("#f38ba8") // Denied
	colorOverlay = lipgloss.Color("#6c7086") // Muted text
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorMauve).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			MarginTop(1)

	commandStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	flagStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	deniedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorOverlay)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBlue).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)
)

func showQuickReference(w io.Writer) {
	fmt.Fprintln(w, renderQuickReference(ui.ClampWidth(ui.DetectWidth()), ui.SupportsUnicode()))
}

func renderQuickReference(width int, useUnicode bool) string {
	container := boxStyle.Width(width)
	if !useUnicode {
		container = container.Border(ui.ASCIIBorder)
	}

	titleText := " shAI QUICK REFERENCE - natural language to safe bash "
	titleRendered := titleText
	if useUnicode {
		titleRendered = ui.GradientText(titleText, []lipgloss.Color{colorMauve, colorBlue})
	}
	title := titleStyle.Width(width - 6).Align(lipgloss.Center).Render(titleRendered)

	ask := renderSection(useUnicode, "🔷 ASK", []string{
		bullet(`shai "find files larger than 100MB"`, "generate, check, run"),
		bullet(`shai ask "show open ports" --no-execute`, "stop after the verdict"),
		bullet(`shai ask "list docker images" -j`, "structured result"),
	})

	check := renderSection(useUnicode, "🛡️ CHECK", []string{
		bullet(`shai check "rm -rf ./build" --explain`, "safety verdict only"),
		bullet(`shai patterns test "ls -la"`, "deterministic checks, no model"),
		bullet(`shai intent "tell me a joke"`, "is this a shell task?"),
	})

	manage := renderSection(useUnicode, "🔧 MANAGE", []string{
		bullet("shai config set judgment.provider openai", "project config"),
		bullet("shai config set judgment.model llama3 --global", "user config"),
		bullet("shai history --unsafe", "rejected commands"),
		bullet("shai history prune", "apply retention"),
	})

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		ask,
		check,
		manage,
		verdictLegend(useUnicode),
		flagLegend(useUnicode),
		footerLegend(),
	)

	return container.Render(content)
}

func bullet(command, desc string) string {
	return commandStyle.Render("  "+command) + mutedStyle.Render("  "+desc)
}

func renderSection(useUnicode bool, title string, lines []string) string {
	if !useUnicode {
		title = strings.TrimLeft(title, "🔷🔧🛡️ ")
	}
	header := sectionStyle.Render(title)
	body := strings.Join(lines, "\n")
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

func verdictLegend(useUnicode bool) string {
	safe := "SAFE (runs)"
	unsafe := "UNSAFE (blocked)"
	gated := "LOW CONFIDENCE (blocked)"
	heading := "🎯 VERDICTS"
	if useUnicode {
		safe = "🟢 " + safe
		unsafe = "🔴 " + unsafe
		gated = "🟡 " + gated
	} else {
		heading = "VERDICTS"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render(heading),
		fmt.Sprintf("  %s   %s   %s", commandStyle.Render(safe), deniedStyle.Render(unsafe), flagStyle.Render(gated)),
	)
}

func flagLegend(useUnicode bool) string {
	heading := "🚩 GLOBAL FLAGS"
	if !useUnicode {
		heading = "FLAGS"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render(heading),
		flagStyle.Render("  -j, --json")+mutedStyle.Render("              structured output"),
		flagStyle.Render("  -v, --verbose")+mutedStyle.Render("           log every pipeline stage"),
		flagStyle.Render("  -C, --project <dir>")+mutedStyle.Render("     project directory"),
		flagStyle.Render("  --provider <name>")+mutedStyle.Render("       ollama, openai, gemini"),
		flagStyle.Render("  --threshold <0-1>")+mutedStyle.Render("       confidence bar"),
	)
}

func footerLegend() string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		mutedStyle.Render("HELP: "), commandStyle.Render("shai <command> --help"),
	)
}
