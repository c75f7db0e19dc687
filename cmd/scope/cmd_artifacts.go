package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"scope/pkg/artifact"
)

var (
	openFiles     []string
	artifactsJSON bool
	readSummarize bool
)

// artifactsCmd lists the artifacts built from the given open files
var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List the build artifacts of the open Solidity files",
	Long: `List the JSON artifacts built from the open Solidity files.

Both forge's "out" directory and hardhat-foundry's "artifacts/.foundry" are
searched under the workspace folder. Files that do not end in .sol are ignored.

Example:
  scope artifacts --open Token.sol --open Vault.sol`,
	RunE: runArtifacts,
}

// readCmd prints an artifact's bytes
var readCmd = &cobra.Command{
	Use:   "read <location>",
	Short: "Print the contents of an artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

func init() {
	artifactsCmd.Flags().StringArrayVar(&openFiles, "open", nil, "Name of an open editor tab (repeatable)")
	artifactsCmd.Flags().BoolVar(&artifactsJSON, "json", false, "Print artifacts as JSON with their source and build directory")
	readCmd.Flags().BoolVar(&readSummarize, "summary", false, "Print a summary of the artifact instead of its contents")
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	found := newLocator().Find(cmd.Context(), currentWorkspace(), openFiles)

	out := cmd.OutOrStdout()
	if artifactsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	}
	for _, a := range found {
		fmt.Fprintln(out, a.Location)
	}
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	data, err := artifact.ReadFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !readSummarize {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	summary, err := artifact.Summarize(args[0], data)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
