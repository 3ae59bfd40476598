package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nstogner/sitesmith/pkg/config"
	"github.com/nstogner/sitesmith/pkg/models"
	"github.com/nstogner/sitesmith/pkg/store/jsonl"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript [run-id]",
	Short: "Print a run's agent conversation, or list runs with transcripts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := openTranscripts(cfg)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			ids, err := tr.List()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		}

		h, msgs, err := tr.Read(args[0])
		if err != nil {
			return fmt.Errorf("read transcript %s: %w", args[0], err)
		}
		fmt.Printf("run %s  project %s  outcome %s  %s\n\n", h.RunID, h.ProjectID, h.Outcome, h.Timestamp.Format("2006-01-02 15:04:05"))
		for _, m := range msgs {
			fmt.Printf("[%s]\n%s\n\n", m.Role, render(m))
		}
		return nil
	},
}

func openTranscripts(cfg *config.Config) (*jsonl.Transcripts, error) {
	return jsonl.NewTranscripts(cfg.TranscriptsPath())
}

func render(m models.AgentMessage) string {
	var parts []string
	for _, c := range m.Content {
		switch {
		case c.Text != nil:
			parts = append(parts, c.Text.Content)
		case c.ToolUse != nil:
			parts = append(parts, fmt.Sprintf("-> %s(%s) %v", c.ToolUse.Name, c.ToolUse.ID, c.ToolUse.Input))
		case c.ToolResult != nil:
			parts = append(parts, fmt.Sprintf("<- %s(%s) %s", c.ToolResult.Name, c.ToolResult.ToolUseID, c.ToolResult.Content))
		}
	}
	return strings.Join(parts, "\n")
}
