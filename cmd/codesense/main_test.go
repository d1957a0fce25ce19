package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/codesense/discovery"
	"github.com/poiesic/codesense/expansion"
	"github.com/poiesic/codesense/reembed"
)

const entitiesJSONL = `{"id":"a","type":"function","name":"ParseQuery","path":"query/parser.go","language":"go","content":"ParseQuery parses a boolean search query"}
{"id":"b","type":"function","name":"NextToken","path":"query/lexer.go","language":"go","content":"NextToken returns the next query token from the lexer"}

{"id":"c","type":"document","name":"README","path":"README.md","content":"How to write a boolean query for the lexer"}
`

// run executes the CLI and returns what it wrote to stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"codesense", "--log-level", "error"}, args...))
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func ingestFixture(t *testing.T, dbPath string) {
	t.Helper()
	input := writeFile(t, "entities.jsonl", entitiesJSONL)
	out, _, err := run(t, "ingest", "--db", dbPath, "--mock-embeddings", "--file", input, "--batch-size", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 3 of 3 entities")
}

func discoverIDs(t *testing.T, out string) []string {
	t.Helper()
	var res discovery.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	ids := make([]string, len(res.Items))
	for i, item := range res.Items {
		ids[i] = item.ID
	}
	return ids
}

func findFlag(t *testing.T, cmd *cli.Command, name string) cli.Flag {
	t.Helper()
	for _, f := range cmd.Flags {
		for _, n := range f.Names() {
			if n == name {
				return f
			}
		}
	}
	t.Fatalf("flag %q not found on %s", name, cmd.Name)
	return nil
}

func TestDatabaseFlags(t *testing.T) {
	app := newApp()
	for _, cmd := range app.Commands {
		if cmd.Name == "adapters" {
			continue
		}
		t.Run(cmd.Name, func(t *testing.T) {
			host, ok := findFlag(t, cmd, "embedding-host").(*cli.StringFlag)
			require.True(t, ok)
			assert.Equal(t, "http://localhost:11434/v1", host.Value)
			assert.Empty(t, host.EnvVars)

			db, ok := findFlag(t, cmd, "db").(*cli.StringFlag)
			require.True(t, ok)
			assert.False(t, db.Required)
			assert.Equal(t, []string{"d"}, db.Aliases)

			adapter, ok := findFlag(t, cmd, "adapter").(*cli.StringFlag)
			require.True(t, ok)
			assert.Equal(t, "durable", adapter.Value)

			findFlag(t, cmd, "in-memory")
			findFlag(t, cmd, "mock-embeddings")
		})
	}
}

func TestReembedCommandFlags(t *testing.T) {
	var cmd *cli.Command
	for _, c := range newApp().Commands {
		if c.Name == "reembed" {
			cmd = c
		}
	}
	require.NotNil(t, cmd)

	batch := findFlag(t, cmd, "batch-size").(*cli.IntFlag)
	assert.Equal(t, reembed.DefaultBatchSize, batch.Value)
	retries := findFlag(t, cmd, "max-retries").(*cli.IntFlag)
	assert.Equal(t, 3, retries.Value)
	delay := findFlag(t, cmd, "retry-delay").(*cli.DurationFlag)
	assert.Equal(t, "1s", delay.Value.String())
}

func TestAdaptersCommand(t *testing.T) {
	out, _, err := run(t, "adapters")
	require.NoError(t, err)
	names := strings.Fields(out)
	assert.Contains(t, names, "memory")
	assert.Contains(t, names, "durable")
	assert.Contains(t, names, "badger")
}

func TestSetupLogger(t *testing.T) {
	_, _, err := run(t, "--log-level", "verbose", "adapters")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestIngestAndDiscover(t *testing.T) {
	dbPath := t.TempDir()
	ingestFixture(t, dbPath)

	t.Run("field query", func(t *testing.T) {
		out, _, err := run(t, "discover", "--db", dbPath, "--mock-embeddings", "--no-expand", "type:function")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, discoverIDs(t, out))
	})

	t.Run("type restriction", func(t *testing.T) {
		out, _, err := run(t, "discover", "--db", dbPath, "--mock-embeddings", "--no-expand",
			"--type", "document", "query")
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, discoverIDs(t, out))
	})

	t.Run("limit", func(t *testing.T) {
		out, _, err := run(t, "discover", "--db", dbPath, "--mock-embeddings", "--no-expand", "--limit", "1", "query")
		require.NoError(t, err)
		var res discovery.Result
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Len(t, res.Items, 1)
		assert.True(t, res.Truncated)
		assert.NotEmpty(t, res.QueryID)
	})

	t.Run("config file", func(t *testing.T) {
		cfg := writeFile(t, "discovery.yaml", "expand: false\nrerank:\n  limit: 2\n")
		out, _, err := run(t, "--config", cfg, "discover", "--db", dbPath, "--mock-embeddings", "query")
		require.NoError(t, err)
		assert.Len(t, discoverIDs(t, out), 2)
	})

	t.Run("bad config file", func(t *testing.T) {
		cfg := writeFile(t, "discovery.yaml", "candidate_limit: 0\n")
		_, _, err := run(t, "--config", cfg, "discover", "--db", dbPath, "--mock-embeddings", "query")
		require.ErrorIs(t, err, discovery.ErrInvalidConfig)
	})

	t.Run("syntax error", func(t *testing.T) {
		_, _, err := run(t, "discover", "--db", dbPath, "--mock-embeddings", "(query")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "discovery failed")
	})

	t.Run("query required", func(t *testing.T) {
		_, _, err := run(t, "discover", "--db", dbPath, "--mock-embeddings")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query is required")
	})

	t.Run("expand", func(t *testing.T) {
		out, _, err := run(t, "expand", "--db", dbPath, "--mock-embeddings", "--max-suggestions", "3", "lexer")
		require.NoError(t, err)
		var res expansion.Result
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, "lexer", res.Original)
		assert.LessOrEqual(t, len(res.Suggestions), 3)
		assert.NotContains(t, res.Terms(), "lexer")
	})

	t.Run("expand rejects unknown scope", func(t *testing.T) {
		_, _, err := run(t, "expand", "--db", dbPath, "--mock-embeddings", "--scope", "tests", "lexer")
		require.ErrorIs(t, err, expansion.ErrInvalidConfig)
	})
}

func TestIngestCommand(t *testing.T) {
	t.Run("database path is required", func(t *testing.T) {
		input := writeFile(t, "entities.jsonl", entitiesJSONL)
		_, _, err := run(t, "ingest", "--mock-embeddings", "--file", input)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database path is required")
	})

	t.Run("memory adapter needs no path", func(t *testing.T) {
		input := writeFile(t, "entities.jsonl", entitiesJSONL)
		out, _, err := run(t, "ingest", "--adapter", "memory", "--mock-embeddings", "--file", input)
		require.NoError(t, err)
		assert.Contains(t, out, "Ingested 3 of 3 entities")
	})

	t.Run("invalid AI configuration", func(t *testing.T) {
		input := writeFile(t, "entities.jsonl", entitiesJSONL)
		_, _, err := run(t, "ingest", "--in-memory", "--embedding-model", "", "--file", input)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid AI configuration")
	})

	t.Run("malformed line", func(t *testing.T) {
		input := writeFile(t, "entities.jsonl", "{\"id\":\"a\",\"type\":\"function\",\"name\":\"A\"}\nnot json\n")
		_, _, err := run(t, "ingest", "--in-memory", "--mock-embeddings", "--file", input)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("invalid entities are reported", func(t *testing.T) {
		input := writeFile(t, "entities.jsonl",
			"{\"id\":\"a\",\"type\":\"function\",\"name\":\"A\"}\n{\"id\":\"b\",\"type\":\"widget\",\"name\":\"B\"}\n")
		out, _, err := run(t, "ingest", "--in-memory", "--mock-embeddings", "--file", input)
		require.Error(t, err)
		assert.Contains(t, out, "Ingested 1 of 2 entities")
	})
}

func TestReadEntities(t *testing.T) {
	entities, err := readEntities(strings.NewReader(entitiesJSONL))
	require.NoError(t, err)
	require.Len(t, entities, 3)
	assert.Equal(t, "ParseQuery", entities[0].Name)
	assert.Equal(t, "document", entities[2].Type)

	entities, err = readEntities(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestExportImportCommands(t *testing.T) {
	src := t.TempDir()
	ingestFixture(t, src)

	snapshot := filepath.Join(t.TempDir(), "snapshot.bin")
	_, stderr, err := run(t, "export", "--db", src, "--mock-embeddings", "--out", snapshot)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Exported 3 embeddings")

	dst := t.TempDir()
	_, stderr, err = run(t, "import", "--db", dst, "--mock-embeddings", "--in", snapshot)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Imported 3 embeddings")

	out, _, err := run(t, "discover", "--db", dst, "--mock-embeddings", "--no-expand", "type:function")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, discoverIDs(t, out))

	t.Run("missing snapshot", func(t *testing.T) {
		_, _, err := run(t, "import", "--db", dst, "--mock-embeddings", "--in", filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open snapshot")
	})
}

func TestReembedCommand(t *testing.T) {
	dbPath := t.TempDir()
	ingestFixture(t, dbPath)

	t.Run("in place", func(t *testing.T) {
		_, stderr, err := run(t, "reembed", "--db", dbPath, "--mock-embeddings",
			"--batch-size", "2", "--retry-delay", "1ms")
		require.NoError(t, err)
		assert.Contains(t, stderr, "Embeddings: mock")
		assert.Contains(t, stderr, "Starting reembedding of 3 entities")
		assert.Contains(t, stderr, "Reembedding complete")
	})

	t.Run("into another database", func(t *testing.T) {
		target := t.TempDir()
		_, _, err := run(t, "reembed", "--db", dbPath, "--mock-embeddings", "--to", target)
		require.NoError(t, err)

		out, _, err := run(t, "discover", "--db", target, "--mock-embeddings", "--no-expand", "type:document")
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, discoverIDs(t, out))
	})

	t.Run("invalid batch size", func(t *testing.T) {
		_, _, err := run(t, "reembed", "--db", dbPath, "--mock-embeddings", "--batch-size", "0")
		require.ErrorIs(t, err, reembed.ErrInvalidConfig)
	})
}
