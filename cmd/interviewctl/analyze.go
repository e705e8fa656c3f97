package main

import (
	"encoding/json"
	"fmt"
	"os"

	"stash/models"
	"stash/services/interview"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <diagram.json>",
		Short: "Analyze a whiteboard snapshot and print the detected components",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read diagram: %w", err)
			}

			var req models.UpdateDiagramRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("failed to parse diagram: %w", err)
			}

			out := struct {
				Analysis models.DiagramAnalysis `json:"analysis"`
				Metrics  models.DiagramMetrics  `json:"metrics"`
			}{
				Analysis: interview.AnalyzeDiagram(req.Elements),
				Metrics:  interview.ComputeDiagramMetrics(req.Elements),
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
