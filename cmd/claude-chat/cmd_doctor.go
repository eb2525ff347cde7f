package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asiloisad/pulsar-claude-chat/cli"
	"github.com/asiloisad/pulsar-claude-chat/config"
	"github.com/asiloisad/pulsar-claude-chat/paths"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment for problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		cliPath := ""
		if cfg.GetCLIPath() != "claude" {
			cliPath = cfg.GetCLIPath()
		}
		prereqs := cli.DefaultPrerequisites(cliPath)
		fmt.Print(cli.FormatCheckResults(cli.CheckAll(prereqs)))

		if configPath, err := paths.ConfigFilePath(); err == nil {
			fmt.Printf("\nConfig:      %s\n", configPath)
		}
		if dbPath, err := paths.SessionDBPath(); err == nil {
			fmt.Printf("Session DB:  %s\n", dbPath)
		}
		if logsDir, err := paths.LogsDir(); err == nil {
			fmt.Printf("Logs:        %s\n", logsDir)
		}
		fmt.Printf("Bridge port: %d\n", cfg.GetBridgePort())

		return cli.ValidateRequired(prereqs)
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
