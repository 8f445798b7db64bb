package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRecv_Order(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{Dir: filepath.Join(t.TempDir(), "exchange")}

	tx, err := cfg.BuildSender(ctx)
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	step := 0
	tx.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Millisecond)
	}

	payloads := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, p := range payloads {
		require.NoError(t, tx.Send(ctx, p))
	}
	require.NoError(t, tx.Close())

	rx, err := cfg.BuildReceiver(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rx.Len())

	for _, want := range payloads {
		got, err := rx.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = rx.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSend_Collision(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{Dir: t.TempDir()}

	tx, err := cfg.BuildSender(ctx)
	require.NoError(t, err)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	tx.now = func() time.Time { return fixed }

	require.NoError(t, tx.Send(ctx, []byte("a")))
	require.NoError(t, tx.Send(ctx, []byte("b")))

	entries, err := os.ReadDir(cfg.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		at, ok := ParseName(e.Name())
		assert.True(t, ok, e.Name())
		assert.True(t, at.Equal(fixed))
	}

	rx, err := cfg.BuildReceiver(ctx)
	require.NoError(t, err)
	first, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), first)
}

func TestBuildSender_AutoClean(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	_, err := (&Config{Dir: dir, AutoClean: true}).BuildSender(ctx)
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.ErrorIs(t, err, os.ErrNotExist)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBuildReceiver_WaitsForDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "later")

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.MkdirAll(dir, 0o755)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rx, err := (&Config{Dir: dir}).BuildReceiver(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rx.Len())
}

func TestBuildReceiver_Cancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := (&Config{Dir: filepath.Join(t.TempDir(), "never")}).BuildReceiver(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildReceiver_UnparseableNamesFirst(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-05-01T12:00:00.000000000+00:00"), []byte("stamped"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes"), []byte("plain"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("skip"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	rx, err := (&Config{Dir: dir}).BuildReceiver(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, rx.Len())

	got, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), got)
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"2024-05-01T12:00:00.123456789+02:00", true},
		{"2024-05-01T12:00:00.123456789+02:00.6f1c", true},
		{"2024-05-01T12:00:00Z", true},
		{"2024-05-01T12:00:00.123456789+02:00x", false},
		{"readme", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseName(tt.name)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestValidate(t *testing.T) {
	_, err := (&Config{}).BuildSender(context.Background())
	assert.ErrorIs(t, err, ErrNoDir)
}
