package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/procurahq/docintel/internal/retrieval"
	"github.com/procurahq/docintel/pkg/anthropic"
)

var (
	chatDocumentID     string
	chatConversationID string
	chatTopK           int
)

var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask a grounded question about a processed document",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		engine := retrieval.NewEngine(cfg, st,
			retrieval.NewOpenAIEmbedder(cfg.OpenAI),
			anthropic.NewClient(cfg.Anthropic.Key),
		)

		reply, err := engine.Chat(ctx, chatDocumentID, strings.Join(args, " "), chatConversationID, chatTopK)
		if err != nil {
			if eris.Is(err, retrieval.ErrNotReady) {
				return eris.New("document is not embedded yet: run `docintel retrieval --document " + chatDocumentID + "` first")
			}
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatDocumentID, "document", "", "document ID (required)")
	chatCmd.Flags().StringVar(&chatConversationID, "conversation", "", "conversation ID to continue")
	chatCmd.Flags().IntVar(&chatTopK, "top-k", 0, "number of pages to retrieve (default from config)")
	_ = chatCmd.MarkFlagRequired("document")
	rootCmd.AddCommand(chatCmd)
}
