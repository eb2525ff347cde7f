package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asiloisad/pulsar-claude-chat/paths"
	"github.com/asiloisad/pulsar-claude-chat/session"
)

var sessionsProject string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored chat sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var filter []string
		if sessionsProject != "" {
			filter = []string{sessionsProject}
		}

		metas, err := store.List(filter)
		if err != nil {
			return err
		}

		if len(metas) == 0 {
			fmt.Println("No stored sessions.")
			return nil
		}

		for _, meta := range metas {
			first := meta.FirstMessage
			if len(first) > 60 {
				first = first[:57] + "..."
			}
			fmt.Printf("%s  %s  %3d msgs  %s\n",
				meta.SessionID,
				meta.UpdatedAt.Local().Format("2006-01-02 15:04"),
				meta.MessageCount,
				first,
			)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a stored chat session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		deleted, err := store.Delete(args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no session with id %s", args[0])
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

func openStore() (*session.Store, error) {
	dbPath, err := paths.SessionDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve session db path: %w", err)
	}
	return session.NewStore(dbPath)
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsProject, "project", "", "only sessions for this project path")
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
