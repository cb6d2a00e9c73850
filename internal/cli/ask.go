package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shai-cli/shai/internal/config"
	"github.com/shai-cli/shai/internal/core"
	"github.com/shai-cli/shai/internal/db"
	"github.com/shai-cli/shai/internal/ui"
)

// Pipeline outcomes that end the process with a non-zero exit.
var (
	ErrQueryRejected   = errors.New("query rejected by intent filter")
	ErrCommandRejected = errors.New("command rejected by safety check")
)

var flagNoExecute bool

func addAskFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&flagNoExecute, "no-execute", "n", false, "show the command and verdict without running it")
}

func init() {
	addAskFlags(askCmd)
	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Generate, check and run a command for a natural-language request",
	Long: `Generate a bash command for the request, then run it only if it passes
the safety check.

Examples:
  shai ask "find all python files modified this week"
  shai "show disk usage of this directory" --no-execute
  shai ask "list listening ports" -j`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// askResult is the structured form of one pipeline run.
type askResult struct {
	Query           string                `json:"query"`
	Intent          *core.IntentVerdict   `json:"intent,omitempty"`
	Command         string                `json:"command,omitempty"`
	GenerationError string                `json:"generation_error,omitempty"`
	Verdict         *core.Verdict         `json:"verdict,omitempty"`
	Explanation     string                `json:"explanation,omitempty"`
	Executed        bool                  `json:"executed"`
	Execution       *core.ExecutionReport `json:"execution,omitempty"`
	HistoryID       string                `json:"history_id,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

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
	patterns, err := core.NewPatternSet(cfg.Patterns.Deny, cfg.Patterns.Whitelist)
	if err != nil {
		return err
	}

	text := !out.IsStructured()
	w := cmd.OutOrStdout()
	r := ui.NewRenderer()
	say := func(s string) {
		if text {
			fmt.Fprintln(w, s)
		}
	}

	result := &askResult{Query: query}
	finish := func(runErr error) error {
		if !text {
			if err := out.Write(result); err != nil {
				return err
			}
		}
		return runErr
	}

	say(r.Banner(query))

	if cfg.Judgment.IntentFilter {
		filter := core.NewIntentFilter(backend, cfg.Judgment.IntentModel, core.WithLogger(logger.WithPrefix("intent")))
		iv := filter.Classify(ctx, query)
		result.Intent = &iv
		if !iv.IsValid {
			say(r.Rejected(iv))
			return finish(fmt.Errorf("%w: %s", ErrQueryRejected, iv.Reason))
		}
	}

	say(r.Section("Generating command..."))
	generator := core.NewGenerator(backend, cfg.Judgment.GeneratorModel, core.WithLogger(logger.WithPrefix("generator")))
	command, genErr := generator.Generate(ctx, query)
	if genErr != nil {
		logger.Warn("command generation failed, using fallback", "err", genErr)
		result.GenerationError = genErr.Error()
	}
	result.Command = command
	say(r.Command(command))

	say(r.Section("Validating command safety..."))
	evaluator := core.NewSafetyEvaluator(patterns, backend, core.WithLogger(logger.WithPrefix("safety")))
	verdict := evaluator.Evaluate(ctx, command, core.EvalConfig{
		Model:               cfg.Judgment.Model,
		ConfidenceThreshold: cfg.Judgment.ConfidenceThreshold,
		WantRationale:       cfg.Judgment.WantRationale,
	})
	result.Verdict = &verdict
	say(r.Verdict(verdict))
	say(r.Passed(verdict))

	history := openHistory(cfg, logger)
	if history != nil {
		defer history.Close()
		result.HistoryID = recordEvaluation(history, logger, query, command, verdict)
	}

	if !verdict.IsSafe {
		if cfg.Judgment.ExplainUnsafe {
			result.Explanation = evaluator.ExplainRisk(ctx, command, cfg.Judgment.Model)
			say(r.Explanation(result.Explanation))
		}
		return finish(ErrCommandRejected)
	}

	if !cfg.General.Execute {
		say(r.Skipped())
		return finish(nil)
	}

	say(r.Section("Executing command..."))
	executor, err := newExecutor(cfg, logger)
	if err != nil {
		return finish(err)
	}
	report := executor.Run(ctx, []string{command})
	result.Executed = true
	result.Execution = report
	say(r.Execution(report))

	exitCode := lastExitCode(report)
	if history != nil && result.HistoryID != "" {
		if err := history.MarkExecuted(result.HistoryID, exitCode); err != nil {
			logger.Warn("recording execution failed", "err", err)
		}
	}
	if !report.Success {
		return finish(fmt.Errorf("command exited with status %d", exitCode))
	}
	return finish(nil)
}

func newExecutor(cfg config.Config, logger *log.Logger) (*core.Executor, error) {
	opts := core.ExecutorOptions{
		Shell:   cfg.Executor.Shell,
		Timeout: cfg.Executor.Timeout(),
		Logger:  logger.WithPrefix("executor"),
	}
	if flagProject != "" {
		dir, err := projectPath()
		if err != nil {
			return nil, err
		}
		opts.Dir = dir
	}
	return core.NewExecutor(opts)
}

func lastExitCode(report *core.ExecutionReport) int {
	if len(report.Results) == 0 {
		return 0
	}
	return report.Results[len(report.Results)-1].ExitCode
}

// openHistory opens the history store. Failures are logged and disable
// recording for this run.
func openHistory(cfg config.Config, logger *log.Logger) *db.DB {
	if !cfg.History.Enabled {
		return nil
	}
	path := cfg.History.ResolvedDatabasePath()
	database, err := db.OpenAndMigrate(path)
	if err != nil {
		logger.Warn("history unavailable", "path", path, "err", err)
		return nil
	}
	return database
}

func recordEvaluation(database *db.DB, logger *log.Logger, query, command string, v core.Verdict) string {
	e := &db.Evaluation{
		Query:          query,
		Command:        command,
		IsSafe:         v.IsSafe,
		Confidence:     v.Confidence,
		Source:         string(v.Source),
		Rationale:      v.Rationale,
		MatchedPattern: v.MatchedPattern,
		Gated:          v.Gated,
	}
	if err := database.CreateEvaluation(e); err != nil {
		logger.Warn("recording evaluation failed", "err", err)
		return ""
	}
	return e.ID
}
