package graph

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/flowgraph/internal/docfmt"
	"github.com/zero-day-ai/flowgraph/link"
	"github.com/zero-day-ai/flowgraph/ns"
)

func testdata(t *testing.T, name string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(context.Background(), filepath.Join("testdata", "pubsub.json"))
	require.NoError(t, err)

	assert.Equal(t, "0.1.0", cfg.Version.String())
	assert.Equal(t, []ns.Ident{ns.MustIdent("publisher"), ns.MustIdent("consumer")}, cfg.Processors.Slice())

	channel, ok := cfg.Exchanges.Get(ns.MustIdent("channel"))
	require.True(t, ok)
	assert.Equal(t, link.KindFile, channel.Kind)
	require.NotNil(t, channel.File)
	assert.Equal(t, testdata(t, "channel"), channel.File.Dir)

	conn, ok := cfg.Connections.Get(ns.MustIdent("channel"))
	require.True(t, ok)
	assert.Equal(t, []ns.Ident{ns.MustIdent("consumer")}, conn.Sink.Slice())
	assert.Equal(t, []ns.Ident{ns.MustIdent("publisher")}, conn.Source.Slice())
	assert.Nil(t, cfg.Modules)
}

func TestLoad_Modules(t *testing.T) {
	cfg, err := Load(context.Background(), filepath.Join("testdata", "root.json"))
	require.NoError(t, err)

	outer, ok := cfg.Modules.Get(ns.MustIdent("outer"))
	require.True(t, ok)
	assert.Equal(t, "nested/outer.yaml", outer.Path)
	assert.Equal(t, testdata(t, "nested/outer.yaml"), outer.AbsPath)
	require.NotNil(t, outer.Config)
	assert.True(t, outer.Config.Processors.Contains(ns.MustIdent("myproc")))

	frames, ok := outer.Config.Exchanges.Get(ns.MustIdent("frames"))
	require.True(t, ok)
	assert.Equal(t, testdata(t, "nested/frames"), frames.File.Dir)

	inner, ok := outer.Config.Modules.Get(ns.MustIdent("inner"))
	require.True(t, ok)
	assert.Equal(t, testdata(t, "nested/inner.json"), inner.AbsPath)
	require.NotNil(t, inner.Config)
	assert.Equal(t, "0.1.1", inner.Config.Version.String())

	events, ok := cfg.Exchanges.Get(ns.MustIdent("events"))
	require.True(t, ok)
	assert.Equal(t, testdata(t, "events.sock"), events.Unix.Path)
}

func TestLoad_Cycle(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join("testdata", "cycle", "a.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModuleCycle)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, testdata(t, "cycle/a.json"), loadErr.Path)
	assert.Contains(t, err.Error(), "a.json -> ")
}

func TestLoad_SharedModuleIsNotACycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shared.json", `{"version": "0.1.0", "processors": ["p"], "exchanges": {}, "connections": {}}`)
	writeFile(t, dir, "root.json", `{
		"version": "0.1.0", "processors": [], "exchanges": {}, "connections": {},
		"modules": {"left": "shared.json", "right": "./shared.json"},
	}`)

	cfg, err := Load(context.Background(), filepath.Join(dir, "root.json"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Modules.Len())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "missing-module.json", `{"version": "0.1.0", "processors": [], "exchanges": {}, "connections": {}, "modules": {"m": "nope.json"}}`)
	writeFile(t, dir, "bad-version.json", `{"version": "1.2.0", "processors": [], "exchanges": {}, "connections": {}}`)
	writeFile(t, dir, "no-version.json", `{"processors": [], "exchanges": {}, "connections": {}}`)
	writeFile(t, dir, "bad-ident.json", `{"version": "0.1.0", "processors": ["a b"], "exchanges": {}, "connections": {}}`)
	writeFile(t, dir, "bad-exchange.json", `{"version": "0.1.0", "processors": [], "exchanges": {"e": {"type": "carrier-pigeon"}}, "connections": {}}`)
	writeFile(t, dir, "empty-module.json", `{"version": "0.1.0", "processors": [], "exchanges": {}, "connections": {}, "modules": {"m": ""}}`)

	tests := []struct {
		name    string
		file    string
		wantErr error
		path    string
	}{
		{name: "missing file", file: "absent.json", wantErr: fs.ErrNotExist, path: "absent.json"},
		{name: "missing module", file: "missing-module.json", wantErr: fs.ErrNotExist, path: "nope.json"},
		{name: "incompatible version", file: "bad-version.json", wantErr: ErrVersionMismatch, path: "bad-version.json"},
		{name: "missing version", file: "no-version.json", wantErr: ErrVersionMismatch, path: "no-version.json"},
		{name: "invalid processor name", file: "bad-ident.json", wantErr: ns.ErrInvalidIdent, path: "bad-ident.json"},
		{name: "unknown exchange type", file: "bad-exchange.json", wantErr: link.ErrUnknownKind, path: "bad-exchange.json"},
		{name: "empty module path", file: "empty-module.json", wantErr: errEmptyModulePath, path: "empty-module.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), filepath.Join(dir, tt.file))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, filepath.Join(dir, tt.path), loadErr.Path)
		})
	}
}

func TestParse(t *testing.T) {
	doc := `
version: 0.1.0
processors: [a, b]
exchanges:
  e:
    type: file
    dir: spool
connections:
  e:
    "<": [a]
    ">": [b]
`
	base := t.TempDir()
	cfg, err := Parse(context.Background(), docfmt.FormatYAML, []byte(doc), base)
	require.NoError(t, err)

	e, ok := cfg.Exchanges.Get(ns.MustIdent("e"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(base, "spool"), e.File.Dir)

	conn, ok := cfg.Connections.Get(ns.MustIdent("e"))
	require.True(t, ok)
	assert.Equal(t, []ns.Ident{ns.MustIdent("a")}, conn.Sink.Slice())
	assert.Equal(t, []ns.Ident{ns.MustIdent("b")}, conn.Source.Slice())
}

func TestParse_AbsentCollections(t *testing.T) {
	cfg, err := Parse(context.Background(), docfmt.FormatJSON, []byte(`{"version": "0.1.0"}`), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Processors.Len())
	assert.Equal(t, 0, cfg.Exchanges.Len())
	assert.Equal(t, 0, cfg.Connections.Len())
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
