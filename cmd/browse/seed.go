package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/source/reload"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/postgres"
)

func newSeedCmd(global *globalOptions) *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "seed FILE",
		Short: "Upsert posts from a JSON file into PostgreSQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			docs, err := source.Decode(f)
			if err != nil {
				return err
			}
			source.NewEnricher(cfg.Source.Seed).Enrich(docs)

			db, err := postgres.New(cfg.Postgres)
			if err != nil {
				return fmt.Errorf("connecting to postgres: %w", err)
			}
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("migrating postgres: %w", err)
			}
			if err := source.NewPostgresProvider(db).Store(ctx, docs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d posts\n", len(docs))

			if !notify {
				return nil
			}
			if !cfg.Kafka.Enabled() {
				return fmt.Errorf("--notify needs kafka.brokers in the config")
			}
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CollectionUpdates)
			defer func() {
				if err := producer.Close(); err != nil {
					slog.Error("closing kafka producer", "error", err)
				}
			}()
			if err := reload.NewNotifier(producer).Notify(ctx, "seed"); err != nil {
				return fmt.Errorf("publishing reload: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reload published")
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "ask running browser instances to reload after seeding")
	return cmd
}
