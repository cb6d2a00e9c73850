// Package cli implements the Cobra command-line interface for shai.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shai-cli/shai/internal/config"
	"github.com/shai-cli/shai/internal/core"
	"github.com/shai-cli/shai/internal/llm"
	"github.com/shai-cli/shai/internal/output"
	"github.com/shai-cli/shai/internal/utils"
)

// Version information set by goreleaser
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flag values
var (
	flagConfig    string
	flagOutput    string
	flagJSON      bool
	flagVerbose   bool
	flagProvider  string
	flagModel     string
	flagThreshold float64
	flagRationale bool
	flagDB        string
	flagProject   string
)

// newBackend builds the judgment backend. Tests replace it with a stub.
var newBackend = func(ctx context.Context, cfg config.Config, logger *log.Logger) (core.Backend, error) {
	return llm.New(ctx, llm.Config{
		Provider:  cfg.Judgment.Provider,
		Endpoint:  cfg.Judgment.Endpoint,
		APIKeyEnv: cfg.Judgment.APIKeyEnv,
		Timeout:   cfg.Judgment.Timeout(),
	}, llm.WithLogger(logger.WithPrefix("llm")))
}

var rootCmd = &cobra.Command{
	Use:   "shai [query]",
	Short: "Turn a natural-language request into a shell command, checked for safety before it runs",
	Long: `shai converts a plain-English request into a bash command, judges whether
the command is safe to run, and executes it only when the safety judgment
clears the confidence bar.

Safety is decided in layers:
  patterns   - builtin deny rules and a whitelist of read-only commands decide instantly
  model      - anything else is judged by the configured model backend
  threshold  - model approvals below judgment.confidence_threshold are rejected

Run without arguments to see the quick reference card.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			showQuickReference(cmd.OutOrStdout())
			return nil
		}
		return runAsk(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		project, err := projectPath()
		if err != nil {
			return err
		}
		userPath, projectConfig := config.ConfigPaths(project, flagConfig)
		dbPath := flagDB
		if dbPath == "" {
			cfg, err := config.Load(config.LoadOptions{ProjectDir: project, ConfigPath: flagConfig})
			if err == nil {
				dbPath = cfg.History.ResolvedDatabasePath()
			}
		}

		payload := map[string]any{
			"version":        version,
			"commit":         commit,
			"build_date":     date,
			"go_version":     runtime.Version(),
			"user_config":    userPath,
			"project_config": projectConfig,
			"db_path":        dbPath,
			"project_path":   project,
		}

		if out.IsStructured() {
			return out.Write(payload)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "shai %s\n", version)
		fmt.Fprintf(w, "  commit:  %s\n", commit)
		fmt.Fprintf(w, "  built:   %s\n", date)
		fmt.Fprintf(w, "  go:      %s\n", runtime.Version())
		fmt.Fprintf(w, "  config:  %s\n", userPath)
		fmt.Fprintf(w, "  project: %s\n", projectConfig)
		fmt.Fprintf(w, "  db:      %s\n", dbPath)
		return nil
	},
}

// Execute runs the root command. SIGINT cancels in-flight backend calls.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// GetOutput returns the configured output format.
// Precedence: --json > --output > SHAI_OUTPUT_FORMAT env > text
func GetOutput() string {
	if flagJSON {
		return string(output.FormatJSON)
	}
	if flagOutput != "" && flagOutput != string(output.FormatText) {
		return flagOutput
	}
	if envFormat := os.Getenv("SHAI_OUTPUT_FORMAT"); envFormat != "" {
		if f, err := output.ParseFormat(envFormat); err == nil {
			return string(f)
		}
	}
	return string(output.FormatText)
}

func newWriter(cmd *cobra.Command) (*output.Writer, error) {
	format, err := output.ParseFormat(GetOutput())
	if err != nil {
		return nil, err
	}
	return output.New(format,
		output.WithOutput(cmd.OutOrStdout()),
		output.WithErrorOutput(cmd.ErrOrStderr()),
	), nil
}

// projectPath returns the -C directory or the working directory.
func projectPath() (string, error) {
	if flagProject != "" {
		return filepath.Abs(flagProject)
	}
	return os.Getwd()
}

// flagOverrides maps explicitly set global flags onto config keys.
func flagOverrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("provider") {
		overrides["judgment.provider"] = flagProvider
	}
	if flags.Changed("model") {
		overrides["judgment.model"] = flagModel
	}
	if flags.Changed("threshold") {
		overrides["judgment.confidence_threshold"] = flagThreshold
	}
	if flags.Changed("rationale") {
		overrides["judgment.want_rationale"] = flagRationale
	}
	if flags.Changed("db") {
		overrides["history.database_path"] = flagDB
	}
	if flags.Changed("verbose") {
		overrides["general.verbose"] = flagVerbose
	}
	if f := flags.Lookup("no-execute"); f != nil && f.Changed && flagNoExecute {
		overrides["general.execute"] = false
	}
	return overrides
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	project, err := projectPath()
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(config.LoadOptions{
		ProjectDir:    project,
		ConfigPath:    flagConfig,
		FlagOverrides: flagOverrides(cmd),
	})
}

// newLogger builds the process logger on stderr and installs it as default.
func newLogger(cmd *cobra.Command, cfg config.Config) *log.Logger {
	level := cfg.General.LogLevel
	if cfg.General.Verbose {
		level = "debug"
	}
	logger := utils.InitLogger(utils.LoggerOptions{
		Level:  level,
		Output: cmd.ErrOrStderr(),
		Prefix: "shai",
	})
	utils.SetDefaultLogger(logger)
	return logger
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "project config file path (default: <project>/.shai/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "output format: text, json, yaml (env: SHAI_OUTPUT_FORMAT)")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "shorthand for --output=json")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging of every pipeline stage")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "judgment backend: ollama, openai, gemini")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "safety judgment model")
	rootCmd.PersistentFlags().Float64Var(&flagThreshold, "threshold", core.DefaultConfidenceThreshold, "minimum confidence for a model approval")
	rootCmd.PersistentFlags().BoolVar(&flagRationale, "rationale", false, "attach the model's reasoning to verdicts")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "history database path")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "C", "", "project directory")

	addAskFlags(rootCmd)

	_ = rootCmd.RegisterFlagCompletionFunc("provider", completeProviders)
	_ = rootCmd.RegisterFlagCompletionFunc("output", completeFormats)

	rootCmd.AddCommand(versionCmd)
}
