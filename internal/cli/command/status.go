package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pageserver-go/internal/cli/connection"
	"github.com/yndnr/pageserver-go/internal/cli/output"
	"github.com/yndnr/pageserver-go/internal/server/pageservice"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the status of a running page server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Admin address of the page server",
				EnvVars: []string{"PAGESERVER_SERVER"},
				Value:   "127.0.0.1:9898",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 10 * time.Second,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format: yaml, json",
				Value:   "yaml",
			},
		},
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}

	client := connection.NewHTTPClient(c.String("server"), c.Duration("timeout"))
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	var status pageservice.Status
	if err := client.GetJSON(ctx, "/v1/status", &status); err != nil {
		return fmt.Errorf("status of %s: %w", client.BaseURL(), err)
	}
	return output.NewFormatter(format).Format(writer(c), status)
}
