package main

import (
	"github.com/alecthomas/kong"
	"github.com/studlyf/gateway/cmd/gateway/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode."`
		Version kong.VersionFlag
		Server  commands.ServerCmd `cmd:"" help:"Start the gateway (auth, guards, dashboards)"`
	}
)

func main() {
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		})
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
