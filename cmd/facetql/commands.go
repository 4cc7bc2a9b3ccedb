package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/scott-cotton/cli"
)

type MainConfig struct {
	Main *cli.Command
}

type ServeConfig struct {
	*MainConfig
	Serve *cli.Command

	ConfigFile string `cli:"name=config desc='configuration file (yaml)'"`
	Addr       string `cli:"name=addr desc='listen address, overrides the config file'"`
	DataDir    string `cli:"name=data desc='data directory, overrides the config file'"`
}

type NormalizeConfig struct {
	*MainConfig
	Normalize *cli.Command

	Diff bool `cli:"name=diff desc='show what normalization changed'"`
}

type ExplainConfig struct {
	*MainConfig
	Explain *cli.Command

	Color bool `cli:"name=color desc='print the tree in color'"`
}

type FacetConfig struct {
	*MainConfig
	Facet *cli.Command

	Field string `cli:"name=field aliases=f desc='facet field'"`
	Value string `cli:"name=value aliases=v desc='value to toggle'"`
	Min   string `cli:"name=min desc='range lower bound'"`
	Max   string `cli:"name=max desc='range upper bound'"`
}

type HashConfig struct {
	*MainConfig
	Hash *cli.Command

	Token string `cli:"name=token desc='API token to hash'"`
}

func MainCommand() *cli.Command {
	cfg := &MainConfig{}

	return cli.NewCommandAt(&cfg.Main, "facetql").
		WithSynopsis("facetql command [opts]").
		WithDescription("facetql normalizes search queries and keeps faceted search sessions.").
		WithRun(func(cc *cli.Context, args []string) error {
			return facetqlMain(cfg, cc, args)
		}).
		WithSubs(
			ServeCommand(cfg),
			NormalizeCommand(cfg),
			ExplainCommand(cfg),
			FacetCommand(cfg),
			HashCommand(cfg))
}

func facetqlMain(cfg *MainConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	err = sub.Run(cc, args[1:])
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		os.Exit(sub.Exit(cc, err))
	}
	return err
}

func ServeCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ServeConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Serve, "serve").
		WithSynopsis("serve [-config file] [-addr addr] [-data dir]").
		WithDescription("run the HTTP search session server").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return serve(cfg, cc, args)
		})
}

func NormalizeCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &NormalizeConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Normalize, "normalize").
		WithAliases("n", "norm").
		WithSynopsis("normalize [-diff] query...").
		WithDescription("print the canonical form of a query").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return normalize(cfg, cc, args)
		})
}

func ExplainCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ExplainConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Explain, "explain").
		WithAliases("x").
		WithSynopsis("explain [-color] query...").
		WithDescription("print the parsed query tree").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return explain(cfg, cc, args)
		})
}

func FacetCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &FacetConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Facet, "facet").
		WithAliases("f").
		WithSynopsis("facet -field f (-value v | -min a -max b) query...").
		WithDescription("toggle a facet value or set a range on a query").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return facet(cfg, cc, args)
		})
}

func HashCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &HashConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Hash, "hash").
		WithSynopsis("hash -token t").
		WithDescription("print the bcrypt hash of an API token for the config file").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return hash(cfg, cc, args)
		})
}
