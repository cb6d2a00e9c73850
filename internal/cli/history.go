package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shai-cli/shai/internal/db"
	"github.com/shai-cli/shai/internal/utils"
)

var (
	flagHistoryLimit  int
	flagHistoryUnsafe bool
	flagHistoryDays   int
)

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 50, "max results to return")
	historyCmd.Flags().BoolVar(&flagHistoryUnsafe, "unsafe", false, "only show rejected commands")
	historyPruneCmd.Flags().IntVar(&flagHistoryDays, "days", -1, "delete records older than this many days (default: history.retention_days)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistoryDB opens the configured history database for the history commands.
func openHistoryDB(cmd *cobra.Command) (*db.DB, int, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, 0, err
	}
	newLogger(cmd, cfg)
	database, err := db.OpenAndMigrate(cfg.History.ResolvedDatabasePath())
	if err != nil {
		return nil, 0, fmt.Errorf("opening database: %w", err)
	}
	return database, cfg.History.RetentionDays, nil
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded evaluations, newest first",
	Long: `List the commands shai has generated and judged, newest first.

Examples:
  shai history                 # recent evaluations
  shai history --unsafe        # only rejected commands
  shai history --limit 5 -j    # last five as JSON
  shai history prune           # drop records past history.retention_days`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _, err := openHistoryDB(cmd)
		if err != nil {
			return err
		}
		defer database.Close()

		evals, err := database.ListEvaluations(flagHistoryLimit, flagHistoryUnsafe)
		if err != nil {
			return fmt.Errorf("listing evaluations: %w", err)
		}

		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		if out.IsStructured() {
			if evals == nil {
				evals = []*db.Evaluation{}
			}
			return out.Write(evals)
		}
		if len(evals) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No evaluations recorded.")
			return nil
		}

		rows := make([][]string, 0, len(evals))
		for _, e := range evals {
			rows = append(rows, []string{
				shortID(e.ID),
				e.CreatedAt.Local().Format("2006-01-02 15:04"),
				verdictWord(e),
				e.Source,
				strconv.FormatFloat(e.Confidence, 'f', 2, 64),
				exitColumn(e),
				utils.SingleLine(e.Command, 60),
			})
		}
		return out.Table([]string{"ID", "CREATED", "VERDICT", "SOURCE", "CONF", "EXIT", "COMMAND"}, rows)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recorded evaluation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _, err := openHistoryDB(cmd)
		if err != nil {
			return err
		}
		defer database.Close()

		e, err := database.GetEvaluation(args[0])
		if errors.Is(err, db.ErrEvaluationNotFound) {
			return fmt.Errorf("evaluation %s not found", args[0])
		}
		if err != nil {
			return err
		}

		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		if out.IsStructured() {
			return out.Write(e)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "ID:         %s\n", e.ID)
		fmt.Fprintf(w, "Created:    %s\n", e.CreatedAt.Local().Format(time.RFC3339))
		if e.Query != "" {
			fmt.Fprintf(w, "Query:      %s\n", utils.SingleLine(e.Query, 0))
		}
		fmt.Fprintf(w, "Command:    %s\n", utils.SanitizeInput(e.Command))
		fmt.Fprintf(w, "Verdict:    %s (%s, confidence %.2f)\n", verdictWord(e), e.Source, e.Confidence)
		if e.MatchedPattern != "" {
			fmt.Fprintf(w, "Pattern:    %s\n", e.MatchedPattern)
		}
		if e.Rationale != "" {
			fmt.Fprintf(w, "Rationale:  %s\n", utils.SingleLine(e.Rationale, 0))
		}
		fmt.Fprintf(w, "Exit code:  %s\n", exitColumn(e))
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete evaluations older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, retention, err := openHistoryDB(cmd)
		if err != nil {
			return err
		}
		defer database.Close()

		days := retention
		if flagHistoryDays >= 0 {
			days = flagHistoryDays
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		deleted, err := database.PruneBefore(cutoff)
		if err != nil {
			return fmt.Errorf("pruning history: %w", err)
		}

		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		if out.IsStructured() {
			return out.Write(map[string]any{
				"deleted": deleted,
				"cutoff":  cutoff.Format(time.RFC3339),
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d evaluations older than %d days\n", deleted, days)
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func verdictWord(e *db.Evaluation) string {
	switch {
	case e.IsSafe:
		return "safe"
	case e.Gated:
		return "gated"
	default:
		return "unsafe"
	}
}

func exitColumn(e *db.Evaluation) string {
	if !e.Executed || e.ExitCode == nil {
		return "-"
	}
	return strconv.Itoa(*e.ExitCode)
}
