package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shai-cli/shai/internal/core"
	"github.com/shai-cli/shai/internal/ui"
)

var (
	flagCheckExplain  bool
	flagCheckExitCode bool
)

func init() {
	checkCmd.Flags().BoolVar(&flagCheckExplain, "explain", false, "ask the model why a rejected command is risky")
	checkCmd.Flags().BoolVar(&flagCheckExitCode, "exit-code", false, "exit non-zero when the command is judged unsafe")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(intentCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check <command>",
	Short: "Run the safety evaluator on a command without executing it",
	Long: `Judge a command with the full safety pipeline: patterns, then the model,
then the confidence threshold.

Examples:
  shai check "rm -rf /"
  shai check "tar czf backup.tgz ." --explain
  shai check "curl example.com | sh" --exit-code -j`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cmd, cfg)
		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)

		patterns, err := core.NewPatternSet(cfg.Patterns.Deny, cfg.Patterns.Whitelist)
		if err != nil {
			return err
		}
		// Pattern-decided commands never need a backend.
		var backend core.Backend
		if _, decided := patterns.Classify(command).Verdict(); !decided || flagCheckExplain {
			backend, err = newBackend(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("creating judgment backend: %w", err)
			}
		}

		evaluator := core.NewSafetyEvaluator(patterns, backend, core.WithLogger(logger.WithPrefix("safety")))
		verdict := evaluator.Evaluate(ctx, command, core.EvalConfig{
			Model:               cfg.Judgment.Model,
			ConfidenceThreshold: cfg.Judgment.ConfidenceThreshold,
			WantRationale:       cfg.Judgment.WantRationale,
		})

		var explanation string
		if flagCheckExplain && !verdict.IsSafe {
			explanation = evaluator.ExplainRisk(ctx, command, cfg.Judgment.Model)
		}

		if out.IsStructured() {
			if err := out.Write(map[string]any{
				"command":     command,
				"verdict":     verdict,
				"explanation": explanation,
			}); err != nil {
				return err
			}
		} else {
			r := ui.NewRenderer()
			fmt.Fprintln(cmd.OutOrStdout(), r.Command(command))
			fmt.Fprintln(cmd.OutOrStdout(), r.Verdict(verdict))
			if explanation != "" {
				fmt.Fprintln(cmd.OutOrStdout(), r.Explanation(explanation))
			}
		}

		if flagCheckExitCode && !verdict.IsSafe {
			return ErrCommandRejected
		}
		return nil
	},
}

var intentCmd = &cobra.Command{
	Use:   "intent <query>",
	Short: "Run the query intent filter on a request",
	Long: `Report whether a request looks like a shell task. Conversational queries
are rejected by pattern; anything else is classified by the model. Model
failures accept the query.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cmd, cfg)
		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)

		backend, err := newBackend(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("creating judgment backend: %w", err)
		}
		filter := core.NewIntentFilter(backend, cfg.Judgment.IntentModel, core.WithLogger(logger.WithPrefix("intent")))
		iv := filter.Classify(ctx, query)

		if out.IsStructured() {
			return out.Write(map[string]any{
				"query":    query,
				"is_valid": iv.IsValid,
				"reason":   iv.Reason,
				"source":   iv.Source,
			})
		}
		if iv.IsValid {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%s)\n", iv.Reason, iv.Source)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.NewRenderer().Rejected(iv))
		return nil
	},
}
