package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "scope/configs"
	"scope/pkg/artifact"
	"scope/pkg/build"
	"scope/pkg/logger"
	"scope/pkg/notify"
	"scope/pkg/settings"
	"scope/pkg/terminal"
	"scope/pkg/theme"
	"scope/pkg/workspace"
)

var (
	// Global flags
	verbose       bool
	workspaceFlag string
	settingsFlag  string

	cfg *config.Config
	log *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scope",
	Short: "Solidity workspace helpers: artifacts, builds and theme",
	Long: `scope backs a Solidity editor extension.

It finds the compiled JSON artifacts of the open .sol files, runs the build
command in a disposable terminal session and reports how it exited, and reads
the editor's panel colours. Run "scope serve" to expose the same helpers over
a local HTTP API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadConfig()
		if workspaceFlag != "" {
			cfg.Workspace = workspaceFlag
			if settingsFlag == "" && os.Getenv("SCOPE_SETTINGS_PATH") == "" {
				cfg.SettingsPath = config.DefaultSettingsPath(workspaceFlag)
			}
		}
		if settingsFlag != "" {
			cfg.SettingsPath = settingsFlag
		}

		logCfg := logger.DefaultConfig("scope")
		logCfg.Level = cfg.LogLevel
		logCfg.Encoding = cfg.LogEncoding
		if verbose {
			logCfg.Level = "debug"
		}
		var err error
		log, err = logger.Init(logCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "Workspace folder (default: $SCOPE_WORKSPACE or current directory)")
	rootCmd.PersistentFlags().StringVar(&settingsFlag, "settings", "", "Editor settings file (default: <workspace>/.vscode/settings.json)")

	rootCmd.AddCommand(artifactsCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

// exitError makes the process exit with a build's status code.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("build exited with status %d", e.code)
}

func currentWorkspace() workspace.Context {
	return workspace.New(cfg.Workspace)
}

func newThemeReader() *theme.Reader {
	return theme.NewReader(settings.NewFileReader(cfg.SettingsPath), log)
}

func newShellManager(cmd *cobra.Command) *terminal.ShellManager {
	return terminal.NewShellManager(terminal.ShellConfig{
		Shell:  cfg.Shell,
		Cwd:    cfg.Workspace,
		Output: cmd.ErrOrStderr(),
	}, log)
}

func newBuildRunner(shells terminal.Manager, presenter notify.Presenter) *build.Runner {
	buildCfg := build.DefaultConfig()
	buildCfg.Cwd = cfg.Workspace
	buildCfg.AdvisoryTimeout = time.Duration(cfg.AdvisorySeconds) * time.Second
	return build.NewRunner(shells, presenter, buildCfg, log)
}

func newLocator() *artifact.Locator {
	return artifact.NewLocator(log)
}
