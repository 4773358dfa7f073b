package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/starford/folio/internal"
	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/scaffold"
	"github.com/starford/folio/internal/taxonomy"
	pkgconfig "github.com/starford/folio/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOrDefault(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// open loads the config and wires the services for one-shot commands, which
// log to stderr.
func open(cmd *cli.Command) (*internal.Services, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel, false)
	slog.SetDefault(logger)

	services, err := internal.OpenServices(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return services, logger, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func newPost(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("new: expected exactly one <path> argument")
	}

	services, _, err := open(cmd)
	if err != nil {
		return err
	}
	defer services.Close()

	post, err := services.Service.CreatePost(ctx, scaffold.Options{
		Path:    cmd.Args().First(),
		Title:   cmd.String("title"),
		Desc:    cmd.String("desc"),
		Tags:    cmd.String("tags"),
		Outline: cmd.String("outline"),
		Force:   cmd.Bool("force"),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.Root().Writer, "created %s\n", post.Path)
	return err
}

func printTaxonomy(ctx context.Context, cmd *cli.Command) error {
	field, err := taxonomy.ParseField(cmd.String("field"))
	if err != nil {
		return err
	}

	services, _, err := open(cmd)
	if err != nil {
		return err
	}
	defer services.Close()

	out := cmd.Root().Writer
	if cmd.Bool("index") {
		if err := services.Service.Rebuild(ctx); err != nil {
			return err
		}
		counts, err := services.Service.TermCounts(ctx, field)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return writeJSON(out, counts)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "COUNT\tID\tLABEL")
		for _, c := range counts {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", c.Count, c.Slug, c.Label)
		}
		return tw.Flush()
	}

	if err := services.Posts.Rebuild(ctx); err != nil {
		return err
	}
	groups := services.Service.Taxonomy(ctx, field)
	if cmd.Bool("json") {
		return writeJSON(out, groups)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNT\tID\tLABEL\tLATEST")
	for _, g := range groups {
		latest := ""
		if len(g.Posts) > 0 {
			latest = g.Posts[0].URL
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", g.Count, g.ID, g.Label, latest)
	}
	return tw.Flush()
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	services, _, err := open(cmd)
	if err != nil {
		return err
	}
	defer services.Close()

	if err := services.Service.Rebuild(ctx); err != nil {
		return err
	}
	return mcpserver.New(services.Service, version).ServeStdio()
}

func reindex(ctx context.Context, cmd *cli.Command) error {
	services, logger, err := open(cmd)
	if err != nil {
		return err
	}
	defer services.Close()

	if err := services.Service.Rebuild(ctx); err != nil {
		return err
	}
	logger.Info("reindex complete",
		slog.Int("posts", len(services.Posts.Posts())),
		slog.String("version", services.Service.Version()))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
