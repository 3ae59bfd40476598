// Command sitesmith runs the code agent service.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nstogner/sitesmith/pkg/config"
	"github.com/nstogner/sitesmith/pkg/models/gemini"
)

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "sitesmith",
		Short: "Build web apps from prompts with a sandboxed code agent",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel)
			return nil
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, runCmd, pruneCmd, transcriptCmd)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToUpper(level) {
	case "TRACE":
		logLevel = gemini.LevelTrace
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
