package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "testgen:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "testgen",
		Usage: "generate test cases from a requirements document",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "log level written to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "upload a document to the extraction service and print the test cases",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "path of the document to upload",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "endpoint",
						Usage: "extraction service base URL (defaults to configuration)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print the rendered entries as JSON",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runGenerate(ctx, generateOptions{
						Path:     cmd.String("file"),
						Endpoint: cmd.String("endpoint"),
						JSON:     cmd.Bool("json"),
						LogLevel: cmd.String("log-level"),
					}, cmd.Root().Writer, cmd.Root().ErrWriter)
				},
			},
		},
	}
}
