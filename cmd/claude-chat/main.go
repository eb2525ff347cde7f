package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "claude-chat",
	Short: "Claude chat backend for the Pulsar editor",
	Long: `claude-chat is the backend process behind the Pulsar chat panel.

It manages the Claude CLI subprocess in stream-json mode, serves editor
tools to the CLI over an MCP bridge on localhost, and persists chat
sessions so conversations survive editor restarts.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)
}
