package flowgraph

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubCloser struct {
	err   error
	calls int
}

func (c *stubCloser) Close() error {
	c.calls++
	return c.err
}

func TestCloseWithLog(t *testing.T) {
	tests := []struct {
		name    string
		closer  *stubCloser
		wantLog []string
	}{
		{
			name:   "clean close",
			closer: &stubCloser{},
		},
		{
			name:    "close error",
			closer:  &stubCloser{err: errors.New("socket busy")},
			wantLog: []string{"level=WARN", "failed to close resource", "resource=receiver", "socket busy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			CloseWithLog(tt.closer, slog.New(slog.NewTextHandler(&buf, nil)), "receiver")

			assert.Equal(t, 1, tt.closer.calls)
			if len(tt.wantLog) == 0 {
				assert.Empty(t, buf.String())
				return
			}
			for _, s := range tt.wantLog {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestCloseWithLog_NilCloser(t *testing.T) {
	var buf bytes.Buffer
	CloseWithLog(nil, slog.New(slog.NewTextHandler(&buf, nil)), "sender")
	assert.Empty(t, buf.String())
}

func TestCloseWithLog_DefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	CloseWithLog(&stubCloser{err: io.ErrClosedPipe}, nil, "sender")
	assert.Contains(t, buf.String(), "resource=sender")
}
