package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/scott-cotton/cli"
	"nikand.dev/go/graceful"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/coffersTech/facetql/internal/config"
	"github.com/coffersTech/facetql/internal/engine"
	"github.com/coffersTech/facetql/internal/server"
	"github.com/coffersTech/facetql/internal/storage"
)

func serve(cfg *ServeConfig, cc *cli.Context, args []string) (err error) {
	_, err = cfg.Serve.Parse(cc, args)
	if err != nil {
		return err
	}

	conf := config.Default()
	if cfg.ConfigFile != "" {
		conf, err = config.Load(cfg.ConfigFile)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cfg.run(ctx, cfg.override(conf))
}

// run serves until ctx is done.
func (cfg *ServeConfig) run(ctx context.Context, conf config.Config) (err error) {
	store := config.NewStore(conf)

	reader, err := storage.NewColumnReader()
	if err != nil {
		return errors.Wrap(err, "new snapshot reader")
	}
	writer, err := storage.NewColumnWriter()
	if err != nil {
		return errors.Wrap(err, "new snapshot writer")
	}

	qe := engine.NewQueryEngine(conf.DataDir, reader.ReadSnapshot, writer.WriteSnapshot, conf.Retention)
	qe.SetFallback(conf.Fallback)
	qe.SetUpperCaseFields(conf.UpperCaseFields)

	defer func() {
		if e := qe.Stop(); e != nil && err == nil {
			err = errors.Wrap(e, "stop engine")
		}
	}()

	tlog.Printw("facetql started", "data", conf.DataDir, "retention", conf.Retention, "auth", store.AuthRequired())

	srv := server.NewQueryServer(qe, store, conf.Listen)

	g := graceful.New()

	g.Add(func(ctx context.Context) error {
		return srv.Start()
	}, graceful.WithStop(func(ctx context.Context) error {
		if err := srv.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "shutdown http")
		}
		return nil
	}))

	g.Add(func(ctx context.Context) error {
		return qe.RunCleaner(ctx, conf.CleanerInterval)
	})

	g.Add(func(ctx context.Context) error {
		return qe.RunFlusher(ctx, conf.FlushInterval)
	})

	if cfg.ConfigFile != "" {
		g.Add(func(ctx context.Context) error {
			return config.Watch(ctx, cfg.ConfigFile, func(c config.Config) {
				c = cfg.override(c)

				store.Set(c)
				qe.SetFallback(c.Fallback)
				qe.SetUpperCaseFields(c.UpperCaseFields)
			})
		})
	}

	err = g.Run(ctx, graceful.IgnoreErrors(context.Canceled))

	tlog.Printw("facetql stopped", "err", err)

	return err
}

// override applies the command line flags on top of the config file.
func (cfg *ServeConfig) override(c config.Config) config.Config {
	if cfg.Addr != "" {
		c.Listen = cfg.Addr
	}
	if cfg.DataDir != "" {
		c.DataDir = cfg.DataDir
	}

	return c
}
