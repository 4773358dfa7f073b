package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "folio",
		Usage:   "Blog content server with tag and category taxonomies, full-text search, and post scaffolding",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (.yaml or .toml)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live reload of the content root",
				Action: serve,
			},
			{
				Name:      "new",
				Usage:     "Scaffold a new post under posts/",
				ArgsUsage: "<path>",
				Action:    newPost,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Heading text (defaults to the file name)"},
					&cli.StringFlag{Name: "desc", Usage: "Short description"},
					&cli.StringFlag{Name: "tags", Usage: "Tags separated by commas, slashes, or pipes"},
					&cli.StringFlag{Name: "outline", Usage: "Outline depth", Value: "deep"},
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Overwrite an existing post"},
				},
			},
			{
				Name:   "taxonomy",
				Usage:  "Print the tag or category groups",
				Action: printTaxonomy,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "field", Usage: "tags or categories", Value: "tags"},
					&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
					&cli.BoolFlag{Name: "index", Usage: "Read counts from the search index"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:   "reindex",
				Usage:  "Sync the search index with the content root",
				Action: reindex,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
