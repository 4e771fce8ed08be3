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
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/lexis"
	"github.com/poiesic/lexis/manager"
	"github.com/poiesic/lexis/search"
)

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	cfg, err := lexis.LoadConfig("lexis.yaml")
	if err != nil {
		panic(err)
	}
	cfg.Store.Backend = lexis.StoreBadger
	cfg.Store.Path = "./lexis_db"

	ctx := context.Background()
	engine, err := lexis.NewEngine(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	query := "도로 점용 허가"
	if len(os.Args) > 1 {
		query = strings.Join(os.Args[1:], " ")
	}

	progress := search.SinkFunc(func(e search.Event) {
		switch e.Type {
		case search.EventStarted:
			fmt.Printf("searching for %q\n", e.Query)
		case search.EventSearching:
			fmt.Printf("  %3.0f%% %s (%s)\n", e.Progress*100, e.StageName, e.DomainID)
		case search.EventComplete:
			fmt.Printf("done in %dms\n", e.ResponseTimeMS)
		case search.EventError:
			fmt.Printf("failed: %s\n", e.Message)
		}
	})

	resp, err := engine.Manager().Search(ctx, manager.Request{Query: query, Limit: 5}, progress)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Found %d hits in %s\n", len(resp.Results), resp.DomainName)
	for i, hit := range resp.Results {
		fmt.Printf("%d: '%s' (%s)[%0.3f] %s\n", i, hit.Snippet, hit.Path, hit.Score, hit.Origin)
	}
}
