package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/poiesic/lexis"
	"github.com/poiesic/lexis/core"
	"gopkg.in/yaml.v3"
)

// seedNode is a statute unit in a seed file.
type seedNode struct {
	ID      string `yaml:"id"`
	Path    string `yaml:"path"`
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
	Leaf    bool   `yaml:"leaf"`
}

// seedEdge is a containment edge in a seed file.
type seedEdge struct {
	Source      string `yaml:"source"`
	Target      string `yaml:"target"`
	Context     string `yaml:"context"`
	ContentType string `yaml:"content_type"`
}

type seedFile struct {
	Nodes []seedNode `yaml:"nodes"`
	Edges []seedEdge `yaml:"edges"`
}

var (
	seedFileName = flag.String("src", "", "YAML file of seed nodes and edges")
	configFile   = flag.String("config", "lexis.yaml", "engine configuration file")
	dbPath       = flag.String("db", "./lexis_db", "BadgerDB database directory")
	bootstrap    = flag.Bool("bootstrap", true, "cluster domains after seeding")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

func loadSeed(filename string) (*seedFile, error) {
	if filename == "" {
		var seed seedFile
		if err := yaml.Unmarshal([]byte(roadAct), &seed); err != nil {
			return nil, err
		}
		return &seed, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return &seed, nil
}

func (s *seedFile) graph() ([]*core.Node, []*core.ContainmentEdge) {
	nodes := make([]*core.Node, len(s.Nodes))
	for i, n := range s.Nodes {
		nodes[i] = &core.Node{
			ID:      core.NodeID(n.ID),
			Path:    n.Path,
			Title:   n.Title,
			Content: n.Content,
			Leaf:    n.Leaf,
		}
	}
	edges := make([]*core.ContainmentEdge, len(s.Edges))
	for i, e := range s.Edges {
		contentType := core.ContentType(e.ContentType)
		if contentType == "" {
			contentType = core.ContentTypeGeneral
		}
		edges[i] = &core.ContainmentEdge{
			Source:      core.NodeID(e.Source),
			Target:      core.NodeID(e.Target),
			Context:     e.Context,
			ContentType: contentType,
		}
	}
	return nodes, edges
}

func main() {
	cfg, err := lexis.LoadConfig(*configFile)
	if err != nil {
		panic(err)
	}
	cfg.Store.Backend = lexis.StoreBadger
	cfg.Store.Path = *dbPath

	ctx := context.Background()
	engine, err := lexis.NewEngine(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	seed, err := loadSeed(*seedFileName)
	if err != nil {
		panic(err)
	}
	nodes, edges := seed.graph()

	pipeline, err := engine.NewIngestionPipeline()
	if err != nil {
		panic(err)
	}
	defer pipeline.Release()

	if err := pipeline.Ingest(ctx, nodes, edges); err != nil {
		panic(err)
	}
	if err := pipeline.Wait(); err != nil {
		panic(err)
	}
	slog.Info("seeded statute graph", "nodes", len(nodes), "edges", len(edges))

	if !*bootstrap {
		return
	}
	domains, err := engine.Bootstrap(ctx)
	if err != nil {
		panic(err)
	}
	for _, d := range domains {
		slog.Info("domain", "id", d.ID, "name", d.Name, "members", d.Size())
	}
}
