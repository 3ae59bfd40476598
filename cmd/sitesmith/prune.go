package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop the step journal of finished runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.engine.Prune(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d runs\n", n)
		return nil
	},
}
