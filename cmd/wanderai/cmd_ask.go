package main

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sweetpotato0/wanderai/mcp"
)

var (
	askSessionID string
	askRemote    string
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send a single message and print the reply as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		msg := strings.Join(args, " ")
		if askRemote != "" {
			return askRemoteServer(ctx, cmd.OutOrStdout(), askRemote, msg, askSessionID)
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())
		return printJSON(cmd.OutOrStdout(), a.assistant.ProcessMessage(ctx, msg, askSessionID))
	},
}

// askRemoteServer sends msg to a WanderAI MCP server instead of a local
// assistant.
func askRemoteServer(ctx context.Context, out io.Writer, endpoint, msg, sessionID string) error {
	client, err := mcp.Dial(ctx, endpoint)
	if err != nil {
		return err
	}
	defer client.Close()

	r, err := client.Ask(ctx, msg, sessionID)
	if err != nil {
		return err
	}
	return printJSON(out, r)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "continue an existing session")
	askCmd.Flags().StringVar(&askRemote, "remote", "", "MCP endpoint of a running wanderai mcp --http server to ask instead")
}
