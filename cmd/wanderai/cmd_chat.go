package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sweetpotato0/wanderai/assistant"
)

const chatBanner = `WanderAI - your travel assistant for trips around Pune.
Commands: /new starts a new conversation, /stats shows validation stats, /quit exits.
`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		return runChat(ctx, a.assistant, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// runChat reads one message per line from in until EOF or /quit.
func runChat(ctx context.Context, a *assistant.Assistant, in io.Reader, out io.Writer) error {
	fmt.Fprint(out, chatBanner)

	var sessionID string
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(line) {
		case "":
			continue
		case "/quit", "/exit":
			fmt.Fprintln(out, "Happy travels!")
			return nil
		case "/new":
			if sessionID != "" {
				_ = a.Reset(ctx, sessionID)
			}
			sessionID = ""
			fmt.Fprintln(out, "Started a new conversation.")
			continue
		case "/stats":
			printStats(ctx, a, sessionID, out)
			continue
		}

		r := a.ProcessMessage(ctx, line, sessionID)
		sessionID = r.SessionID
		fmt.Fprintf(out, "\nWanderAI: %s\n", r.Response)
		if len(r.Sources) > 0 {
			fmt.Fprintf(out, "Sources: %s\n", strings.Join(r.Sources, ", "))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func printStats(ctx context.Context, a *assistant.Assistant, sessionID string, out io.Writer) {
	if sessionID == "" {
		fmt.Fprintln(out, "No conversation yet.")
		return
	}
	st, err := a.Stats(ctx, sessionID)
	if err != nil {
		fmt.Fprintln(out, "No conversation yet.")
		return
	}
	fmt.Fprintf(out, "Messages: %d\nValidated responses: %d\nHallucinations prevented: %d\nKnowledge base refreshes: %d\n",
		st.TotalMessages, st.ValidatedResponses, st.HallucinationsPrevented, st.KBRefreshes)
}
