package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asiloisad/pulsar-claude-chat/process"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Kill orphaned Claude CLI processes",
	Long: `Find Claude CLI processes resuming sessions this backend does not
know about (typically left behind by an editor crash) and kill them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		metas, err := store.List(nil)
		if err != nil {
			return err
		}

		known := make(map[string]bool, len(metas))
		for _, meta := range metas {
			known[meta.SessionID] = true
		}

		killed, err := process.CleanupOrphanedProcesses(known)
		if err != nil {
			return err
		}

		if killed == 0 {
			fmt.Println("No orphaned Claude processes found.")
		} else {
			fmt.Printf("Killed %d orphaned Claude process(es).\n", killed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
