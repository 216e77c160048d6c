package common

import (
	"context"
	"fmt"

	"github.com/cuihairu/gamelib/internal/config"
	"github.com/spf13/cobra"
)

// Globals are the persistent flags shared by every subcommand.
type Globals struct {
	ConfigFile string
	Includes   []string
	Profile    string
	Output     string
	Repository string
	DataPath   string
}

func (g *Globals) Bind(root *cobra.Command) {
	f := root.PersistentFlags()
	f.StringVar(&g.ConfigFile, "config", "", "config file path")
	f.StringSliceVar(&g.Includes, "include", nil, "extra config files merged in order")
	f.StringVar(&g.Profile, "profile", "", "profile overlay from profiles.<name>")
	f.StringVarP(&g.Output, "output", "o", FormatTable, "output format: table|json|yaml")
	f.StringVar(&g.Repository, "repository", "", "repository backend: memory|database (overrides config)")
	f.StringVar(&g.DataPath, "data", "", "dataset location (overrides data.path)")
}

// Load returns the effective config with flag overrides applied.
func (g *Globals) Load() (*config.Config, error) {
	cfg, _, err := config.Load(config.Options{File: g.ConfigFile, Includes: g.Includes, Profile: g.Profile})
	if err != nil {
		return nil, err
	}
	if g.Repository != "" {
		cfg.Repository = g.Repository
	}
	if g.DataPath != "" {
		cfg.Data.Path = g.DataPath
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}
	return cfg, nil
}

// Run loads the config, opens a runtime, calls fn and closes the runtime.
// When load is true the catalog is populated first if it is empty.
func (g *Globals) Run(ctx context.Context, load bool, fn func(rt *Runtime) error) error {
	cfg, err := g.Load()
	if err != nil {
		return err
	}
	rt, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(ctx); cerr != nil {
			rt.Logger.Warn("shutdown", "error", cerr)
		}
	}()
	if load {
		if err := rt.EnsureLoaded(ctx); err != nil {
			return err
		}
	}
	return fn(rt)
}
