package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/asiloisad/pulsar-claude-chat/bridge"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("claude-chat %s (%s/%s)\n", bridge.ServerVersion, runtime.GOOS, runtime.GOARCH)
	},
}
