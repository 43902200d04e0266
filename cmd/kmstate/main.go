package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/tee-keymaster-state/authtag"
	"github.com/ruteri/tee-keymaster-state/cmd/flags"
	"github.com/ruteri/tee-keymaster-state/config"
	"github.com/ruteri/tee-keymaster-state/httpserver"
	"github.com/ruteri/tee-keymaster-state/interfaces"
	"github.com/ruteri/tee-keymaster-state/keymaster"
	"github.com/ruteri/tee-keymaster-state/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "kmstate",
		Usage: "Run and inspect keymaster persistent state",
		Flags: flags.CommonFlags,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve the operator API over the keymaster context",
				Flags:  flags.ServerFlags,
				Action: runServe,
			},
			{
				Name:  "authtags",
				Usage: "inspect or reset the auth tag table",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "print every reserved auth tag with its usage counter",
						Action: runAuthTagsList,
					},
					{
						Name:   "purge",
						Usage:  "remove every auth tag",
						Action: runAuthTagsPurge,
					},
				},
			},
			{
				Name:   "recover",
				Usage:  "run crash recovery on the state store and report what was done",
				Action: runRecover,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServe(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		logger.Error("Invalid configuration", "err", err)
		return err
	}

	km, err := openContext(cCtx.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer km.Teardown()

	server, err := httpserver.New(flags.ConfigureServer(cCtx, logger, cfg.Server), httpserver.NewHandler(km, logger))
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting server")
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}

func runAuthTagsList(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return err
	}

	km, err := openContext(cCtx.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer km.Teardown()

	var entries []authtag.Entry
	err = km.Process(cCtx.Context, func(c *keymaster.Cycle) error {
		entries = c.AuthTags().Entries()
		return nil
	})
	if err != nil {
		return err
	}
	return printJSON(entries)
}

func runAuthTagsPurge(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return err
	}

	km, err := openContext(cCtx.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer km.Teardown()

	var removed int
	err = km.Process(cCtx.Context, func(c *keymaster.Cycle) error {
		removed = c.AuthTags().Count()
		return c.AuthTags().RemoveAll(c.Context())
	})
	if err != nil {
		logger.Error("Failed to purge auth tags", "err", err)
		return err
	}

	logger.Info("Auth tags purged", slog.Int("removed", removed))
	return nil
}

func runRecover(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	repo, err := authtag.Open(cCtx.Context, store, cfg.Keymaster.AuthTagSlots, logger)
	if err != nil {
		logger.Error("Recovery failed", "err", err)
		return err
	}
	return printJSON(repo.LastRecovery())
}

func openStore(cfg config.Config, logger *slog.Logger) (interfaces.StateStore, error) {
	factory := storage.NewStateStoreFactory(logger)

	var (
		store interfaces.StateStore
		err   error
	)
	if len(cfg.MirrorURIs) > 0 {
		store, err = factory.CreateReplicatedStore(cfg.StoreURI, cfg.MirrorURIs)
	} else {
		store, err = factory.StateStoreFor(cfg.StoreURI)
	}
	if err != nil {
		logger.Error("Failed to create state store", "err", err)
		return nil, err
	}

	logger.Info("Using state store", "location", store.LocationURI())
	return store, nil
}

func openContext(ctx context.Context, cfg config.Config, logger *slog.Logger) (*keymaster.Context, error) {
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	km, err := keymaster.New(ctx, cfg.Keymaster, store, logger)
	if err != nil {
		logger.Error("Failed to open keymaster context", "err", err)
		return nil, err
	}
	return km, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
