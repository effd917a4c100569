package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ChatDigest/internal/app"
	"ChatDigest/internal/config"
	"ChatDigest/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "chatdigest",
		Short: "Summarize recent chat activity and deliver the digest",
		Long: `chatdigest reads the last window of messages from the configured chat
sources, summarizes them and delivers the reports to every configured sink
(Telegram DM, Notion, a published Markdown document, a Postgres archive).

Configuration is read from --config (or $CHAT_DIGEST_CONFIG) and overridden by
environment variables such as GEMINI_KEY, TARGET_KEYWORDS and TG_CHANNELS.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file")

	root.AddCommand(newRunCmd(&configPath), newServeCmd(&configPath), newHistoryCmd(&configPath))
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the digest once for the window ending now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := build(ctx, *configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			status, err := application.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d reports, %d deliveries ok, %d failed\n",
				status.RunID, status.UnitsSummarized, status.DeliveriesSucceeded, status.DeliveriesFailed)
			return nil
		},
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the digest on the configured cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := build(ctx, *configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Serve(ctx)
		},
	}
}

func newHistoryCmd(configPath *string) *cobra.Command {
	var limit uint64

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the newest reports stored in the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := build(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			reports, err := application.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, report := range reports {
				fmt.Fprintf(out, "%s  %-20s  %s\n", report.GeneratedAt.Format(time.RFC3339), report.Provenance, firstLine(report.Text))
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&limit, "limit", 10, "number of reports to list")
	return cmd
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return line
}

func build(ctx context.Context, configPath string) (*app.Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format))
}
