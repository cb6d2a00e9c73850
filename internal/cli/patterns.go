package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shai-cli/shai/internal/core"
	"github.com/shai-cli/shai/internal/output"
	"github.com/shai-cli/shai/internal/utils"
)

var (
	flagPatternFormat     string
	flagPatternOutputFile string
	flagPatternExitCode   bool
)

func init() {
	patternsTestCmd.Flags().BoolVar(&flagPatternExitCode, "exit-code", false, "return non-zero exit code when the command is denied")

	patternsExportCmd.Flags().StringVarP(&flagPatternFormat, "format", "f", "json", "export format: json, yaml")
	patternsExportCmd.Flags().StringVar(&flagPatternOutputFile, "file", "", "output file (default: stdout)")

	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsTestCmd)
	patternsCmd.AddCommand(patternsExportCmd)
	patternsCmd.AddCommand(patternsVersionCmd)

	rootCmd.AddCommand(patternsCmd)
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect the deterministic pattern checks",
	Long: `Inspect the deny patterns and whitelist used before any model call.

Deny patterns are regexes checked first, in order; the first match rejects
the command. Whitelist prefixes then approve simple read-only commands.
Commands containing shell control characters are never whitelisted.
Anything else is escalated to the model.

Extra patterns come from [patterns] deny and whitelist in the config file.`,
}

// loadPatterns builds the pattern set from builtins plus configured extras.
func loadPatterns(cmd *cobra.Command) (*core.PatternSet, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	newLogger(cmd, cfg)
	return core.NewPatternSet(cfg.Patterns.Deny, cfg.Patterns.Whitelist)
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deny patterns and whitelist prefixes in evaluation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := loadPatterns(cmd)
		if err != nil {
			return err
		}
		out, err := newWriter(cmd)
		if err != nil {
			return err
		}

		if out.IsStructured() {
			export := set.Export()
			return out.Write(map[string]any{
				"deny":      export.Deny,
				"whitelist": export.Whitelist,
			})
		}

		rows := make([][]string, 0, len(set.DenyPatterns()))
		for i, p := range set.DenyPatterns() {
			rows = append(rows, []string{strconv.Itoa(i + 1), p.Name, p.Source, p.Pattern})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "DENY")
		if err := out.Table([]string{"#", "NAME", "SOURCE", "PATTERN"}, rows); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "\nWHITELIST")
		return out.List(set.Whitelist())
	},
}

var patternsTestCmd = &cobra.Command{
	Use:   "test <command>",
	Short: "Show how the pattern checks classify a command",
	Long: `Classify a command with the pattern checks only. The outcome is deny,
allow, or escalate (the model would decide). No backend is contacted.

Use --exit-code to return non-zero (exit 1) when the command is denied.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := args[0]
		set, err := loadPatterns(cmd)
		if err != nil {
			return err
		}
		out, err := newWriter(cmd)
		if err != nil {
			return err
		}

		m := set.Classify(command)
		resp := map[string]any{
			"command": command,
			"outcome": m.Outcome.String(),
		}
		if m.Rule != "" {
			resp["matched_pattern"] = m.Rule
		}
		if m.Name != "" {
			resp["name"] = m.Name
			resp["description"] = m.Description
		}

		if out.IsStructured() {
			if err := out.Write(resp); err != nil {
				return err
			}
		} else {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Command:  %s\n", utils.SingleLine(command, 0))
			fmt.Fprintf(w, "Outcome:  %s\n", m.Outcome)
			if m.Rule != "" {
				fmt.Fprintf(w, "Pattern:  %s\n", m.Rule)
			}
			if m.Description != "" {
				fmt.Fprintf(w, "Reason:   %s\n", m.Description)
			}
		}

		if flagPatternExitCode && m.Outcome == core.OutcomeDeny {
			return ErrCommandRejected
		}
		return nil
	},
}

var patternsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export patterns for external tools",
	Long: `Export all patterns with a content hash.

Examples:
  shai patterns export                      # JSON to stdout
  shai patterns export -f yaml              # YAML to stdout
  shai patterns export --file patterns.json # JSON to file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := loadPatterns(cmd)
		if err != nil {
			return err
		}
		format, err := output.ParseFormat(flagPatternFormat)
		if err != nil {
			return err
		}
		if format == output.FormatText {
			return fmt.Errorf("unsupported export format %q (valid: json, yaml)", flagPatternFormat)
		}

		if flagPatternOutputFile == "" {
			return output.New(format, output.WithOutput(cmd.OutOrStdout())).Write(set.Export())
		}

		f, err := os.Create(flagPatternOutputFile)
		if err != nil {
			return fmt.Errorf("creating %s: %w", flagPatternOutputFile, err)
		}
		if err := output.New(format, output.WithOutput(f)).Write(set.Export()); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d deny patterns and %d whitelist prefixes to %s\n",
			len(set.DenyPatterns()), len(set.Whitelist()), flagPatternOutputFile)
		return nil
	},
}

var patternsVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the pattern set hash",
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := loadPatterns(cmd)
		if err != nil {
			return err
		}
		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		payload := map[string]any{
			"sha256":          set.ComputeHash(),
			"deny_count":      len(set.DenyPatterns()),
			"whitelist_count": len(set.Whitelist()),
		}
		if out.IsStructured() {
			return out.Write(payload)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sha256:    %s\ndeny:      %d\nwhitelist: %d\n",
			payload["sha256"], payload["deny_count"], payload["whitelist_count"])
		return nil
	},
}
