package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/pageserver-go/internal/cli/output"
	"github.com/yndnr/pageserver-go/internal/server/config"
)

// VerifyCommand returns the verify command.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Validate the configuration and print it as YAML with secrets masked",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			return output.NewFormatter(output.FormatYAML).Format(writer(c), config.Sanitize(cfg))
		},
	}
}
