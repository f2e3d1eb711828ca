package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sweetpotato0/wanderai/mcp"
)

var (
	kbTopK   int
	kbRemote string
)

var (
	kbCmd = &cobra.Command{
		Use:   "kb",
		Short: "Inspect the knowledge base",
	}

	kbSearchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Print the knowledge base documents matching a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if kbRemote != "" {
				client, err := mcp.Dial(cmd.Context(), kbRemote)
				if err != nil {
					return err
				}
				defer client.Close()
				text, err := client.Search(cmd.Context(), query, kbTopK)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kb, err := loadKnowledgeBase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			topK := kbTopK
			if topK <= 0 {
				topK = cfg.KB.MaxContextDocs
			}
			text, err := kb.Search(cmd.Context(), query, topK)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	kbTopicsCmd = &cobra.Command{
		Use:   "topics",
		Short: "List the knowledge base categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kb, err := loadKnowledgeBase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d documents\n", len(kb.Documents()))
			for _, topic := range kb.Topics(0) {
				fmt.Fprintln(out, "-", topic)
			}
			return nil
		},
	}
)

func init() {
	kbSearchCmd.Flags().IntVarP(&kbTopK, "top-k", "k", 0, "number of documents to print (defaults to kb.max_context_docs)")
	kbSearchCmd.Flags().StringVar(&kbRemote, "remote", "", "MCP endpoint of a running wanderai mcp --http server to search through")
	kbCmd.AddCommand(kbSearchCmd, kbTopicsCmd)
}
