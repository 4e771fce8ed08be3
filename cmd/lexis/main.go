// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lexis",
		Usage: "Domain-routed multi-agent search over statute graphs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "lexis.yaml",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides config)",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Graph store backend: badger, memory or neo4j (overrides config)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding and labeling service host URL (overrides config)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "bootstrap",
				Usage:  "Cluster all embedded leaf nodes into domains",
				Action: bootstrapCommand,
			},
			{
				Name:      "search",
				Usage:     "Search the statute graph",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "domain",
						Usage: "Search this domain instead of routing",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results (0 uses the configured default)",
					},
					&cli.BoolFlag{
						Name:  "events",
						Usage: "Print progress events to stderr",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the response as JSON",
					},
				},
			},
			{
				Name:   "domains",
				Usage:  "List domains",
				Action: domainsCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print as JSON"},
				},
			},
			{
				Name:      "domain",
				Usage:     "Show one domain and its neighbors",
				ArgsUsage: "<domain-id>",
				Action:    domainCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print as JSON"},
				},
			},
			{
				Name:   "health",
				Usage:  "Check storage, embeddings and domains",
				Action: healthCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all nodes with the node model and recenter domains",
				Action: reembedCommand,
				Flags: append(reembedFlags(),
					&cli.StringFlag{
						Name:  "node-model",
						Usage: "Node embedding model name (overrides config)",
					},
					&cli.IntFlag{
						Name:  "node-dimensions",
						Usage: "Vector length of the node model (overrides config)",
					},
				),
			},
			{
				Name:   "reembed-edges",
				Usage:  "Reembed all edge contexts with the relationship model",
				Action: reembedEdgesCommand,
				Flags: append(reembedFlags(),
					&cli.StringFlag{
						Name:  "relationship-model",
						Usage: "Relationship embedding model name (overrides config)",
					},
					&cli.IntFlag{
						Name:  "relationship-dimensions",
						Usage: "Vector length of the relationship model (overrides config)",
					},
				),
			},
		},
	}
}

func reembedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of items to embed in each request",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "report-interval",
			Usage: "Report progress every N items",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum attempts for each embedding request",
			Value: 3,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: 1 * time.Second,
		},
	}
}
