package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pageserver-go/internal/cli/output"
	"github.com/yndnr/pageserver-go/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format: text, json, yaml",
				Value:   "text",
			},
		},
		Action: func(c *cli.Context) error {
			if c.String("output") == "text" {
				_, err := fmt.Fprintf(writer(c), "pageserver %s\n", buildinfo.String())
				return err
			}
			format, err := output.ParseFormat(c.String("output"))
			if err != nil {
				return err
			}
			return output.NewFormatter(format).Format(writer(c), buildinfo.Get())
		},
	}
}
