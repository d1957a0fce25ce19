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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/codesense"
	"github.com/poiesic/codesense/ai"
	"github.com/poiesic/codesense/ai/mock"
	"github.com/poiesic/codesense/discovery"
	"github.com/poiesic/codesense/expansion"
	"github.com/poiesic/codesense/ingestion"
	"github.com/poiesic/codesense/reembed"
	"github.com/poiesic/codesense/storage"
	"github.com/poiesic/codesense/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "codesense",
		Usage: "Semantic search over code and documentation entities",
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
				Usage:   "Path to a YAML discovery configuration",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Embed and store entities read as JSON lines",
				Action: ingestCommand,
				Flags: append(databaseFlags(),
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "JSONL file to read (defaults to stdin)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of entities per embedding request",
						Value: ingestion.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of batches embedded concurrently",
						Value: 4,
					},
				),
			},
			{
				Name:      "discover",
				Usage:     "Search stored entities with a boolean query",
				ArgsUsage: "<query>",
				Action:    discoverCommand,
				Flags: append(databaseFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results (overrides the configuration)",
					},
					&cli.BoolFlag{
						Name:  "no-expand",
						Usage: "Disable query expansion",
					},
					&cli.StringSliceFlag{
						Name:  "type",
						Usage: "Only return entities of these types",
					},
					&cli.StringSliceFlag{
						Name:  "prefer",
						Usage: "Boost entities of these types",
					},
				),
			},
			{
				Name:      "expand",
				Usage:     "Show the terms a query would be expanded with",
				ArgsUsage: "<query>",
				Action:    expandCommand,
				Flags: append(databaseFlags(),
					&cli.IntFlag{
						Name:  "max-suggestions",
						Usage: "Maximum number of suggested terms",
						Value: expansion.DefaultConfig().MaxSuggestions,
					},
					&cli.Float64Flag{
						Name:  "min-relevance",
						Usage: "Lowest relevance a suggestion may have",
						Value: expansion.DefaultConfig().MinRelevance,
					},
					&cli.StringFlag{
						Name:  "scope",
						Usage: "Corpus scope (all, code, docs)",
						Value: string(expansion.ScopeAll),
					},
				),
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all stored entities with new embeddings",
				Action: reembedCommand,
				Flags: append(databaseFlags(),
					&cli.StringFlag{
						Name:  "to",
						Usage: "Write new embeddings to this durable database instead of in place",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of entities to process in each batch",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N entities",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.Float64Flag{
						Name:  "batches-per-second",
						Usage: "Pace batches (0 means unpaced)",
					},
				),
			},
			{
				Name:   "export",
				Usage:  "Write a compressed snapshot of the store",
				Action: exportCommand,
				Flags: append(databaseFlags(),
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Snapshot file to write (defaults to stdout)",
					},
				),
			},
			{
				Name:   "import",
				Usage:  "Load a snapshot into the store",
				Action: importCommand,
				Flags: append(databaseFlags(),
					&cli.StringFlag{
						Name:    "in",
						Aliases: []string{"i"},
						Usage:   "Snapshot file to read (defaults to stdin)",
					},
				),
			},
			{
				Name:   "adapters",
				Usage:  "List the registered storage adapters",
				Action: adaptersCommand,
			},
		},
	}
}

func databaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Database directory or connection descriptor",
		},
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Storage adapter (see the adapters command)",
			Value: codesense.DefaultAdapter,
		},
		&cli.BoolFlag{
			Name:  "in-memory",
			Usage: "Run a durable adapter without touching disk",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: ai.DefaultConfig().EmbeddingModel,
		},
		&cli.StringFlag{
			Name:  "token",
			Usage: "Bearer token for the embedding service",
		},
		&cli.Float64Flag{
			Name:  "requests-per-second",
			Usage: "Client-side limit on embedding requests (0 means unlimited)",
		},
		&cli.BoolFlag{
			Name:  "mock-embeddings",
			Usage: "Use deterministic hash-seeded embeddings instead of a service",
		},
	}
}

func openDatabase(c *cli.Context) (*codesense.Database, error) {
	dbPath := c.String("db")
	adapter := c.String("adapter")
	inMemory := c.Bool("in-memory")
	if dbPath == "" && !inMemory && adapter != memory.Kind {
		return nil, errors.New("database path is required")
	}

	opts := []codesense.DatabaseOption{
		codesense.WithAdapter(adapter),
		codesense.WithLogger(slog.Default()),
	}
	if inMemory {
		opts = append(opts, codesense.WithInMemory())
	}
	if c.Bool("mock-embeddings") {
		opts = append(opts, codesense.WithAIProvider(mock.NewMockProvider()))
	} else {
		aiConfig := ai.NewConfig(
			ai.WithEmbeddingHost(c.String("embedding-host")),
			ai.WithEmbeddingModel(c.String("embedding-model")),
			ai.WithToken(c.String("token")),
			ai.WithRequestsPerSecond(c.Float64("requests-per-second"), 1),
		)
		if err := aiConfig.Validate(); err != nil {
			return nil, fmt.Errorf("invalid AI configuration: %w", err)
		}
		opts = append(opts, codesense.WithAIConfig(aiConfig))
	}

	db, err := codesense.NewDatabase(c.Context, dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func loadDiscoveryConfig(c *cli.Context) (discovery.Config, error) {
	path := c.String("config")
	if path == "" {
		return discovery.DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return discovery.Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return discovery.LoadConfig(f)
}

// readEntities decodes one JSON entity per line. Blank lines are skipped.
func readEntities(r io.Reader) ([]ingestion.Entity, error) {
	var entities []ingestion.Entity
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var e ingestion.Entity
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entities = append(entities, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entities, nil
}

func queryArg(c *cli.Context) (string, error) {
	if c.NArg() == 0 {
		return "", errors.New("query is required")
	}
	return strings.Join(c.Args().Slice(), " "), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ingestCommand(c *cli.Context) error {
	in := io.Reader(os.Stdin)
	if path := c.String("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}
	entities, err := readEntities(in)
	if err != nil {
		return fmt.Errorf("failed to read entities: %w", err)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ids, err := db.Ingest(c.Context, entities,
		ingestion.WithBatchSize(c.Int("batch-size")),
		ingestion.WithPoolSize(c.Int("pool-size")),
	)
	fmt.Fprintf(c.App.Writer, "Ingested %d of %d entities\n", len(ids), len(entities))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func discoverCommand(c *cli.Context) error {
	raw, err := queryArg(c)
	if err != nil {
		return err
	}
	cfg, err := loadDiscoveryConfig(c)
	if err != nil {
		return err
	}
	if limit := c.Int("limit"); limit > 0 {
		cfg.Rerank.Limit = limit
	}
	if c.Bool("no-expand") {
		cfg.Expand = false
	}
	if types := c.StringSlice("type"); len(types) > 0 {
		cfg.EntityTypes = types
	}
	if types := c.StringSlice("prefer"); len(types) > 0 {
		cfg.PreferredTypes = types
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := db.NewDiscoveryEngine()
	if err != nil {
		return fmt.Errorf("failed to create discovery engine: %w", err)
	}
	res, err := engine.Discover(c.Context, raw, cfg)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	return writeJSON(c.App.Writer, res)
}

func expandCommand(c *cli.Context) error {
	raw, err := queryArg(c)
	if err != nil {
		return err
	}
	cfg := expansion.Config{
		MaxSuggestions: c.Int("max-suggestions"),
		MinRelevance:   c.Float64("min-relevance"),
		Scope:          expansion.SourceScope(c.String("scope")),
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := db.Expander().Expand(c.Context, raw, cfg)
	if err != nil {
		return fmt.Errorf("expansion failed: %w", err)
	}
	return writeJSON(c.App.Writer, res)
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:        c.Int("batch-size"),
		ReportInterval:   c.Int("report-interval"),
		MaxRetries:       c.Int("max-retries"),
		RetryDelay:       c.Duration("retry-delay"),
		BatchesPerSecond: c.Float64("batches-per-second"),
	}
	if err := reembedConfig.Validate(); err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var opts []reembed.Option
	if to := c.String("to"); to != "" {
		target, err := storage.Open(c.Context, codesense.DefaultAdapter, storage.Options{
			Location: to,
			Logger:   slog.Default(),
		})
		if err != nil {
			return fmt.Errorf("failed to open target database: %w", err)
		}
		defer target.Close()
		opts = append(opts, reembed.WithTarget(target))
	}

	reembedder, err := db.NewReembedder(reembedConfig, c.App.ErrWriter, opts...)
	if err != nil {
		return fmt.Errorf("failed to create reembedder: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", c.String("db"))
	if c.Bool("mock-embeddings") {
		fmt.Fprintln(c.App.ErrWriter, "Embeddings: mock")
	} else {
		fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", c.String("embedding-host"))
		fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", c.String("embedding-model"))
	}
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func exportCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	out := io.Writer(c.App.Writer)
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}
		defer f.Close()
		out = f
	}
	n, err := db.Export(c.Context, out)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "Exported %d embeddings\n", n)
	return nil
}

func importCommand(c *cli.Context) error {
	in := io.Reader(os.Stdin)
	if path := c.String("in"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open snapshot: %w", err)
		}
		defer f.Close()
		in = f
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.Import(c.Context, in)
	fmt.Fprintf(c.App.ErrWriter, "Imported %d embeddings\n", n)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

func adaptersCommand(c *cli.Context) error {
	for _, name := range storage.Adapters() {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))
	var level slog.Level

	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", levelStr)
	}

	handler := slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))

	return nil
}
