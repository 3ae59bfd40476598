package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nstogner/sitesmith/pkg/domain"
)

var runProjectID string

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Execute one run in the foreground and print its outcome as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		value := strings.Join(args, " ")

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		projectID := runProjectID
		if projectID == "" {
			p := &domain.Project{ID: uuid.New().String(), Name: domain.NewProjectName()}
			if err := a.store.CreateProject(ctx, p); err != nil {
				return fmt.Errorf("create project: %w", err)
			}
			projectID = p.ID
			fmt.Fprintf(os.Stderr, "Created project %s (%s)\n", p.Name, p.ID)
		}

		if err := a.store.CreateMessage(ctx, &domain.Message{
			ID:        uuid.New().String(),
			ProjectID: projectID,
			Content:   value,
			Role:      domain.RoleUser,
			Type:      domain.TypeResult,
		}); err != nil {
			return fmt.Errorf("create message: %w", err)
		}

		run, err := a.engine.Submit(ctx, domain.RunRequest{Value: value, ProjectID: projectID})
		if err != nil {
			return err
		}
		out, err := a.engine.Execute(ctx, run)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runProjectID, "project", "p", "", "existing project ID (default: create a new project)")
}
