package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scope/pkg/build"
	"scope/pkg/notify"
	"scope/pkg/theme"
)

// buildCmd runs the build command in a burner terminal
var buildCmd = &cobra.Command{
	Use:   "build [command]",
	Short: "Run the build command and exit with its status",
	Long: `Run the build command in a fresh shell session, followed by "; exit".

The command defaults to $SCOPE_BUILD_COMMAND ("forge build"). scope exits with
the build's status. A failed build also prints an advisory.`,
	RunE: runBuild,
}

// themeCmd prints the panel styling
var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Print the workbench panel background setting",
	Args:  cobra.NoArgs,
	RunE:  runTheme,
}

// errEmptyCommand rejects a blank build command before a terminal is opened.
var errEmptyCommand = errors.New("build command is empty")

func runBuild(cmd *cobra.Command, args []string) error {
	command := cfg.BuildCommand
	if len(args) > 0 {
		command = strings.Join(args, " ")
	}
	if strings.TrimSpace(command) == "" {
		return errEmptyCommand
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shells := newShellManager(cmd)
	defer shells.Close(context.Background())

	runner := newBuildRunner(shells, notify.NewConsolePresenter(cmd.ErrOrStderr(), log))
	h, err := runner.Start(ctx, command)
	if err != nil {
		return err
	}
	status, err := h.Wait(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		h.Abandon(ctxErr)
		return ctxErr
	}
	if err != nil {
		if errors.Is(err, build.ErrIndeterminateExit) {
			log.Error("Build ended without an exit status", zap.String("command", command))
		}
		return err
	}
	if status.Success() {
		return nil
	}

	// The process exits right after this returns; let the advisory print first.
	select {
	case <-h.Advised():
	case <-ctx.Done():
	}
	return &exitError{code: status.Code}
}

func runTheme(cmd *cobra.Command, args []string) error {
	value, err := newThemeReader().PanelBackground(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read theme settings: %w", err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"panel_background": value,
		"activity_bar":     theme.ActivityBarBackground,
	})
}
