package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/shai-cli/shai/internal/config"
)

var (
	flagConfigGlobal bool
)

func init() {
	configCmd.PersistentFlags().BoolVar(&flagConfigGlobal, "global", false, "operate on user config (~/.shai/config.toml)")

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configKeysCmd)

	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or modify shai configuration",
	Long: `Show the effective configuration after merging defaults, the user config
(~/.shai/config.toml), the project config (.shai/config.toml), SHAI_*
environment variables and command-line flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		if out.IsStructured() {
			return out.Write(cfg)
		}
		rows := make([][]string, 0, len(config.Keys()))
		for _, key := range config.Keys() {
			val, _ := config.GetValue(cfg, key)
			rows = append(rows, []string{key, fmt.Sprint(val)})
		}
		return out.Table([]string{"KEY", "VALUE"}, rows)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		val, ok := config.GetValue(cfg, args[0])
		if !ok {
			return fmt.Errorf("unknown key %q", args[0])
		}
		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		if out.IsStructured() {
			return out.Write(map[string]any{
				"key":   args[0],
				"value": val,
			})
		}
		return out.Write(val)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the project (or --global) config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := configTarget()
		if err != nil {
			return err
		}

		value, err := config.ParseValue(args[0], args[1])
		if err != nil {
			return err
		}
		if err := config.WriteValue(target, args[0], value); err != nil {
			return err
		}

		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		if out.IsStructured() {
			return out.Write(map[string]any{
				"path":  target,
				"key":   args[0],
				"value": value,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %v (%s)\n", args[0], value, target)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every settable configuration key",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newWriter(cmd)
		if err != nil {
			return err
		}
		if out.IsStructured() {
			return out.Write(config.Keys())
		}
		return out.List(config.Keys())
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR (default: vi)",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := configTarget()
		if err != nil {
			return err
		}

		// Seed a missing file so the editor opens something meaningful.
		if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
			if err := config.WriteValue(target, "general.execute", config.DefaultConfig().General.Execute); err != nil {
				return err
			}
		} else if err != nil {
			return fmt.Errorf("stat %s: %w", target, err)
		}

		editor, err := editorCommand(os.Getenv("EDITOR"))
		if err != nil {
			return err
		}
		editCmd := exec.Command(editor[0], append(editor[1:], target)...)
		editCmd.Stdin = os.Stdin
		editCmd.Stdout = cmd.OutOrStdout()
		editCmd.Stderr = cmd.ErrOrStderr()
		return editCmd.Run()
	},
}

// configTarget returns the file config set/edit write to.
func configTarget() (string, error) {
	project, err := projectPath()
	if err != nil {
		return "", err
	}
	userPath, projectPath := config.ConfigPaths(project, flagConfig)
	if flagConfigGlobal {
		return userPath, nil
	}
	return projectPath, nil
}

// editorCommand splits an $EDITOR value such as "code --wait" into argv.
func editorCommand(editor string) ([]string, error) {
	if editor == "" {
		return []string{"vi"}, nil
	}
	argv, err := shellwords.Parse(editor)
	if err != nil {
		return nil, fmt.Errorf("parsing $EDITOR: %w", err)
	}
	if len(argv) == 0 {
		return []string{"vi"}, nil
	}
	return argv, nil
}
