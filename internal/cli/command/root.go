package command

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pageserver-go/internal/infra/buildinfo"
	"github.com/yndnr/pageserver-go/internal/infra/confloader"
	"github.com/yndnr/pageserver-go/internal/server/config"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "pageserver",
		Usage:   "Page server: serves page images at any LSN from a single storage backend",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Action:  runAction,
		Commands: []*cli.Command{
			RunCommand(),
			VerifyCommand(),
			StatusCommand(),
			VersionCommand(),
		},
		HideVersion: true,
	}
	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML configuration file",
			EnvVars: []string{confloader.DefaultEnvPrefix + "CONFIG"},
		},
	}
}

// loadConfig loads defaults, then the file (if any), then the
// environment, and verifies the result.
func loadConfig(path string) (*config.ServerConfig, error) {
	cfg := config.Default()

	loader := confloader.NewLoader(confloader.WithConfigFile(path))
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// writer returns the app's output writer.
func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}
