package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweetpotato0/wanderai/server"
)

const janitorInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat, session and webhook HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	go a.sessions.Janitor(ctx, janitorInterval)
	if a.cfg.KB.Watch {
		go func() {
			if err := a.kb.Watch(ctx); err != nil {
				a.logger.Warn("knowledge base watcher stopped", "error", err)
			}
		}()
	}

	srv := server.New(server.Config{Host: a.cfg.Server.Host, Port: a.cfg.Server.Port}, a.assistant, a.webhooks)
	return srv.Run(ctx)
}
