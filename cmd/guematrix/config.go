package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/guematrix/internal/config"
)

// ConfigCmds groups the configuration commands.
type ConfigCmds struct {
	Init ConfigInitCmd `cmd:"" help:"Write a configuration file with the defaults"`
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration"`
}

// ConfigInitCmd writes the default configuration.
type ConfigInitCmd struct {
	Path  string `arg:"" optional:"" help:"Destination (default: ~/.config/guematrix/guematrix.yaml)" type:"path"`
	Force bool   `short:"f" help:"Overwrite an existing file"`
}

func (c *ConfigInitCmd) Run(out io.Writer) error {
	path := c.Path
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := config.Write(path, config.Default(), c.Force); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}

// ConfigShowCmd prints the configuration after files, environment and flags
// are applied. Secrets are masked.
type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(g *Globals, out io.Writer) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	shown := *cfg
	if shown.Server.APIKey != "" {
		shown.Server.APIKey = "********"
	}
	if shown.Remote.APIKey != "" {
		shown.Remote.APIKey = "********"
	}
	if f := cfg.File(); f != "" {
		fmt.Fprintf(out, "# %s\n", f)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(&shown); err != nil {
		return err
	}
	return enc.Close()
}
