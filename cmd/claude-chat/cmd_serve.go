package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/asiloisad/pulsar-claude-chat/bridge"
	"github.com/asiloisad/pulsar-claude-chat/config"
	"github.com/asiloisad/pulsar-claude-chat/host"
	"github.com/asiloisad/pulsar-claude-chat/logger"
	"github.com/asiloisad/pulsar-claude-chat/tools"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge server in the foreground",
	Long: `Start the MCP bridge server on localhost and keep it running until
interrupted. Without an editor attached the tools operate on an in-memory
workspace, which is enough to exercise the protocol end to end.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.SetDebug(cfg.GetDebug())
		defer logger.Close()
		log := logger.WithComponent("bridge")

		port := servePort
		if port == 0 {
			port = cfg.GetBridgePort()
		}

		caps := host.NewFake(cfg.GetProjectPaths()...)
		srv := bridge.New(tools.NewRegistry(caps), caps, log)

		if err := srv.Start(port); err != nil {
			return fmt.Errorf("start bridge: %w", err)
		}

		fmt.Printf("Bridge listening on %s\n", srv.URL())

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (default from config)")
}
