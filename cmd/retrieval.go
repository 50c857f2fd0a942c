package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/procurahq/docintel/internal/retrieval"
)

var (
	retrievalDocumentID string
	retrievalRegenerate bool
	retrievalQuery      string
	retrievalTopK       int
)

var retrievalCmd = &cobra.Command{
	Use:   "retrieval",
	Short: "Build page embeddings for a document",
	Long:  "Embeds every page long enough to be useful for retrieval, skipping pages already embedded. With --query, runs a similarity search instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		engine := retrieval.NewEngine(cfg, st, retrieval.NewOpenAIEmbedder(cfg.OpenAI), nil)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if retrievalQuery != "" {
			hits, err := engine.Search(ctx, retrievalDocumentID, retrievalQuery, retrievalTopK)
			if err != nil {
				return err
			}
			return enc.Encode(hits)
		}

		result, err := engine.Prepare(ctx, retrievalDocumentID, retrievalRegenerate)
		if err != nil {
			return err
		}
		return enc.Encode(result)
	},
}

func init() {
	retrievalCmd.Flags().StringVar(&retrievalDocumentID, "document", "", "document ID (required)")
	retrievalCmd.Flags().BoolVar(&retrievalRegenerate, "regenerate", false, "drop and re-create existing embeddings")
	retrievalCmd.Flags().StringVar(&retrievalQuery, "query", "", "run a similarity search instead of preparing embeddings")
	retrievalCmd.Flags().IntVar(&retrievalTopK, "top-k", 0, "number of pages to retrieve (default from config)")
	_ = retrievalCmd.MarkFlagRequired("document")
	rootCmd.AddCommand(retrievalCmd)
}
