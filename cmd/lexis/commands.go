package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/lexis"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/manager"
	"github.com/poiesic/lexis/reembed"
	"github.com/poiesic/lexis/search"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the configuration file and applies global flag overrides.
func loadConfig(c *cli.Context) (*lexis.Config, error) {
	cfg, err := lexis.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.Store.Backend = lexis.StoreBadger
		cfg.Store.Path = db
	}
	if store := c.String("store"); store != "" {
		cfg.Store.Backend = store
	}
	if host := c.String("embedding-host"); host != "" {
		cfg.AI.EmbeddingHost = host
		cfg.AI.LabelerHost = host
	}
	return cfg, nil
}

func openEngine(ctx context.Context, cfg *lexis.Config) (*lexis.Engine, error) {
	engine, err := lexis.NewEngine(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func withEngine(c *cli.Context, fn func(ctx context.Context, engine *lexis.Engine) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c.Context, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()
	return fn(c.Context, engine)
}

func bootstrapCommand(c *cli.Context) error {
	return withEngine(c, func(ctx context.Context, engine *lexis.Engine) error {
		domains, err := engine.Bootstrap(ctx)
		if err != nil {
			return fmt.Errorf("bootstrap failed: %w", err)
		}
		out := c.App.Writer
		fmt.Fprintf(out, "Created %d domains\n", len(domains))
		for _, d := range domains {
			fmt.Fprintf(out, "  %s  %-30s %d nodes\n", d.ID, d.Name, d.Size())
		}
		return nil
	})
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a query is required")
	}

	return withEngine(c, func(ctx context.Context, engine *lexis.Engine) error {
		var sink search.Sink
		if c.Bool("events") {
			sink = search.SinkFunc(func(e search.Event) {
				printEvent(c.App.ErrWriter, e)
			})
		}

		resp, err := engine.Manager().Search(ctx, manager.Request{
			Query:    query,
			Limit:    c.Int("limit"),
			DomainID: core.DomainID(c.String("domain")),
		}, sink)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if c.Bool("json") {
			return writeJSON(c.App.Writer, resp)
		}
		printResponse(c.App.Writer, resp)
		return nil
	})
}

func printEvent(w io.Writer, e search.Event) {
	switch e.Type {
	case search.EventStarted:
		fmt.Fprintf(w, "[%s] started: %s\n", e.RequestID, e.Query)
	case search.EventSearching:
		fmt.Fprintf(w, "[%s] stage %d %-16s %3.0f%% %s\n", e.RequestID, e.Stage, e.StageName, e.Progress*100, e.DomainID)
	case search.EventComplete:
		fmt.Fprintf(w, "[%s] complete: %d results in %dms\n", e.RequestID, e.ResultCount, e.ResponseTimeMS)
	case search.EventError:
		fmt.Fprintf(w, "[%s] error: %s\n", e.RequestID, e.Message)
	}
}

func printResponse(w io.Writer, resp *manager.Response) {
	fmt.Fprintf(w, "Domain: %s (%s)  confidence %.3f  %dms\n",
		resp.DomainName, resp.DomainID, resp.Stats.Confidence, resp.ResponseTimeMS)
	if resp.Stats.Collaborated {
		fmt.Fprintf(w, "Consulted neighbors: %v\n", resp.Stats.NeighborsQueried)
	}
	for _, skipped := range resp.Stats.SkippedStages {
		fmt.Fprintf(w, "Skipped %s: %s\n", skipped.Stage, skipped.Reason)
	}
	for _, skipped := range resp.Stats.NeighborsSkipped {
		fmt.Fprintf(w, "Neighbor %s unavailable: %s\n", skipped.DomainID, skipped.Reason)
	}
	if resp.Stats.Partial {
		fmt.Fprintln(w, "Results are partial")
	}

	fmt.Fprintf(w, "Found %d hits\n", len(resp.Results))
	for i, r := range resp.Results {
		stages := make([]string, len(r.Stages))
		for j, s := range r.Stages {
			stages[j] = string(s)
		}
		fmt.Fprintf(w, "%d: [%0.3f] %s (%s) %s\n", i+1, r.Score, r.Path, strings.Join(stages, ","), r.Origin)
		if r.Snippet != "" {
			fmt.Fprintf(w, "   %s\n", r.Snippet)
		}
	}
}

func domainsCommand(c *cli.Context) error {
	return withEngine(c, func(ctx context.Context, engine *lexis.Engine) error {
		domains := engine.Manager().ListDomains()
		if c.Bool("json") {
			return writeJSON(c.App.Writer, domains)
		}
		if len(domains) == 0 {
			fmt.Fprintln(c.App.Writer, "No domains; run bootstrap first")
			return nil
		}
		for _, d := range domains {
			fmt.Fprintf(c.App.Writer, "%s  %-30s %5d nodes  %d neighbors\n", d.ID, d.Name, d.NodeCount, d.NeighborCount)
		}
		return nil
	})
}

func domainCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("a domain id is required")
	}
	return withEngine(c, func(ctx context.Context, engine *lexis.Engine) error {
		detail, err := engine.Manager().GetDomain(core.DomainID(id))
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return writeJSON(c.App.Writer, detail)
		}
		out := c.App.Writer
		fmt.Fprintf(out, "%s  %s\n", detail.ID, detail.Name)
		fmt.Fprintf(out, "Nodes: %d\n", detail.NodeCount)
		fmt.Fprintf(out, "Updated: %s\n", detail.UpdatedAt.Format("2006-01-02 15:04:05"))
		for _, n := range detail.Neighbors {
			fmt.Fprintf(out, "Neighbor: %s  %s\n", n.ID, n.Name)
		}
		return nil
	})
}

func healthCommand(c *cli.Context) error {
	return withEngine(c, func(ctx context.Context, engine *lexis.Engine) error {
		h := engine.Manager().Health(ctx)
		if err := writeJSON(c.App.Writer, h); err != nil {
			return err
		}
		if h.Status == manager.StatusUnhealthy {
			return cli.Exit("unhealthy", 1)
		}
		return nil
	})
}

func reembedConfig(c *cli.Context) (*reembed.Config, error) {
	cfg := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch-size must be greater than 0")
	}
	if cfg.ReportInterval <= 0 {
		return nil, fmt.Errorf("report-interval must be greater than 0")
	}
	if cfg.MaxRetries <= 0 {
		return nil, fmt.Errorf("max-retries must be greater than 0")
	}
	return cfg, nil
}

func reembedCommand(c *cli.Context) error {
	rcfg, err := reembedConfig(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg.Reembed = rcfg
	if model := c.String("node-model"); model != "" {
		cfg.AI.NodeModel = model
	}
	if dims := c.Int("node-dimensions"); dims > 0 {
		cfg.AI.NodeDimensions = dims
	}

	engine, err := openEngine(c.Context, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	progress := c.App.ErrWriter
	fmt.Fprintf(progress, "Store: %s %s\n", cfg.Store.Backend, cfg.Store.Path)
	fmt.Fprintf(progress, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(progress, "Node model: %s (%d dimensions)\n", cfg.AI.NodeModel, cfg.AI.NodeDimensions)
	fmt.Fprintln(progress)

	reembedder, err := engine.NewNodeReembedder(progress)
	if err != nil {
		return err
	}
	if err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func reembedEdgesCommand(c *cli.Context) error {
	rcfg, err := reembedConfig(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg.Reembed = rcfg
	if model := c.String("relationship-model"); model != "" {
		cfg.AI.RelationshipModel = model
	}
	if dims := c.Int("relationship-dimensions"); dims > 0 {
		cfg.AI.RelationshipDimensions = dims
	}

	engine, err := openEngine(c.Context, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	progress := c.App.ErrWriter
	fmt.Fprintf(progress, "Store: %s %s\n", cfg.Store.Backend, cfg.Store.Path)
	fmt.Fprintf(progress, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(progress, "Relationship model: %s (%d dimensions)\n", cfg.AI.RelationshipModel, cfg.AI.RelationshipDimensions)
	fmt.Fprintln(progress)

	reembedder, err := engine.NewEdgeReembedder(progress)
	if err != nil {
		return err
	}
	if err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("edge reembedding failed: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
