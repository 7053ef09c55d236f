package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/postgres"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	file       string
	url        string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "browse",
		Short:         "Search and step through blog posts from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), opts.logLevel, "text"))
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config file")
	flags.StringVar(&opts.file, "file", "", "load posts from a JSON file instead of the configured source")
	flags.StringVar(&opts.url, "source-url", "", "load posts from this URL instead of the configured source")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newSearchCmd(opts),
		newInteractiveCmd(opts),
		newSeedCmd(opts),
		newLoadTestCmd(),
	)
	return root
}

// loadConfig reads the config file and applies the source override flags.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	switch {
	case o.file != "":
		cfg.Source.Kind, cfg.Source.Path = source.KindFile, o.file
	case o.url != "":
		cfg.Source.Kind, cfg.Source.URL = source.KindHTTP, o.url
	}
	return cfg, cfg.Validate()
}

// loadCollection loads the configured source once into a fresh catalog.
func (o *globalOptions) loadCollection(ctx context.Context) (*config.Config, *document.Collection, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	var db *postgres.Client
	if cfg.Source.Kind == source.KindPostgres {
		db, err = postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
	}

	provider, err := source.New(cfg.Source, db)
	if err != nil {
		return nil, nil, err
	}
	loadCtx, cancel := context.WithTimeout(ctx, cfg.Source.Timeout)
	defer cancel()
	docs, err := provider.Load(loadCtx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading collection: %w", err)
	}
	slog.Debug("collection loaded", "source", cfg.Source.Kind, "documents", len(docs))
	return cfg, document.NewCatalog().Replace(docs), nil
}
