package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/procurahq/docintel/internal/extractor"
	"github.com/procurahq/docintel/internal/model"
	"github.com/procurahq/docintel/internal/pipeline"
	"github.com/procurahq/docintel/pkg/anthropic"
)

var processDocumentIDs []string

var processCmd = &cobra.Command{
	Use:   "process [file...]",
	Short: "Run the extraction pipeline over documents",
	Long:  "Registers each file as a document and runs two-stage extraction over it. Use --id to reprocess documents already in the store. Multiple documents run concurrently; a single document is always processed batch by batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 0 && len(processDocumentIDs) == 0 {
			return eris.New("nothing to process: pass file paths or --id")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		ext, err := extractor.NewExtractor(cfg.Extractor)
		if err != nil {
			return err
		}
		runner := pipeline.NewRunner(cfg, st, anthropic.NewClient(cfg.Anthropic.Key), ext)

		documentIDs := append([]string{}, processDocumentIDs...)
		for _, path := range args {
			doc, err := st.CreateDocument(ctx, filepath.Base(path), path)
			if err != nil {
				return eris.Wrapf(err, "register document %s", path)
			}
			documentIDs = append(documentIDs, doc.ID)
		}

		concurrency := cfg.Batch.MaxConcurrentDocuments
		if concurrency <= 0 {
			concurrency = 2
		}

		var mu sync.Mutex
		results := make([]*model.ProcessResult, 0, len(documentIDs))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, documentID := range documentIDs {
			g.Go(func() error {
				result, err := runner.Process(gctx, documentID)
				if err != nil {
					zap.L().Error("document processing failed",
						zap.String("document_id", documentID),
						zap.Error(err),
					)
					return err
				}
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
				return nil
			})
		}
		runErr := g.Wait()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	processCmd.Flags().StringSliceVar(&processDocumentIDs, "id", nil, "existing document IDs to reprocess")
	rootCmd.AddCommand(processCmd)
}
