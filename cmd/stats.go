package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/procurahq/docintel/internal/model"
	"github.com/procurahq/docintel/internal/pipeline"
	"github.com/procurahq/docintel/internal/store"
)

var statsDocumentID string

type documentReport struct {
	*model.DocumentStats
	RiskSummary riskSummary `json:"risk_summary"`
}

type riskSummary struct {
	Critical          int `json:"critical"`
	NeedingMitigation int `json:"needing_mitigation"`
}

func buildDocumentReport(ctx context.Context, st store.Store, documentID string) (*documentReport, error) {
	stats, err := st.DocumentStats(ctx, documentID)
	if err != nil {
		return nil, err
	}
	risks, err := st.ListRisks(ctx, documentID)
	if err != nil {
		return nil, err
	}

	report := &documentReport{DocumentStats: stats}
	for _, r := range risks {
		if pipeline.IsCritical(r) {
			report.RiskSummary.Critical++
		}
		if pipeline.NeedsMitigation(r) {
			report.RiskSummary.NeedingMitigation++
		}
	}
	return report, nil
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-stage record counts for a document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := buildDocumentReport(ctx, st, statsDocumentID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsDocumentID, "document", "", "document ID (required)")
	_ = statsCmd.MarkFlagRequired("document")
	rootCmd.AddCommand(statsCmd)
}
