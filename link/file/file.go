// Package file implements an exchange backed by a directory of files.
//
// Every sent payload becomes one file named by the local time it was written,
// in RFC 3339 form with nanosecond precision. A receiver takes a snapshot of
// the directory when it is built and replays the files in timestamp order,
// then reports end of stream.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zero-day-ai/flowgraph/internal/ctxlog"
)

// NameLayout is the time layout of payload file names.
const NameLayout = "2006-01-02T15:04:05.000000000-07:00"

// pollInterval is how long a receiver waits before looking for a missing
// directory again.
const pollInterval = 500 * time.Millisecond

// ErrNoDir is returned when the configuration names no directory.
var ErrNoDir = errors.New("file exchange: dir must be specified")

// Config configures a directory exchange.
type Config struct {
	// Dir is the directory holding payload files.
	Dir string `json:"dir" yaml:"dir"`

	// AutoClean removes the directory and its contents when a sender is built.
	AutoClean bool `json:"auto_clean,omitempty" yaml:"auto_clean,omitempty"`
}

// Validate reports whether the configuration is usable.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return ErrNoDir
	}
	return nil
}

// BuildSender prepares the directory and returns a sender writing into it.
func (c *Config) BuildSender(ctx context.Context) (*Sender, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.AutoClean {
		if err := os.RemoveAll(c.Dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to clean directory %s: %w", c.Dir, err)
		}
		ctxlog.FromContext(ctx).Debug("cleaned file exchange directory", "dir", c.Dir)
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", c.Dir, err)
	}

	return &Sender{dir: c.Dir, now: time.Now}, nil
}

// BuildReceiver waits until the directory exists and snapshots its files.
// Waiting ends early when ctx is done.
func (c *Config) BuildReceiver(ctx context.Context) (*Receiver, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := ctxlog.FromContext(ctx)

	var entries []fs.DirEntry
	for {
		var err error
		entries, err = os.ReadDir(c.Dir)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read directory %s: %w", c.Dir, err)
		}

		logger.Debug("file exchange directory does not exist yet, waiting", "dir", c.Dir)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	type entry struct {
		at   time.Time
		name string
	}
	files := make([]entry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		at, _ := ParseName(e.Name())
		files = append(files, entry{at: at, name: e.Name()})
	}

	slices.SortStableFunc(files, func(a, b entry) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(c.Dir, f.name)
	}

	return &Receiver{files: paths}, nil
}

// ParseName extracts the timestamp from a payload file name. A name written
// after a collision carries a suffix that is ignored. Names that are not
// timestamps yield the zero time and false.
func ParseName(name string) (time.Time, bool) {
	if len(name) >= len(NameLayout) {
		head, rest := name[:len(NameLayout)], name[len(NameLayout):]
		if rest == "" || rest[0] == '.' {
			if t, err := time.Parse(NameLayout, head); err == nil {
				return t, true
			}
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, name); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Sender writes each payload to a new file.
type Sender struct {
	dir string
	now func() time.Time
}

// Send writes payload to a file named by the current local time. The file
// appears under its final name only once fully written.
func (s *Sender) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".pending-*")
	if err != nil {
		return fmt.Errorf("failed to create file in %s: %w", s.dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	name := s.now().Local().Format(NameLayout)
	target := filepath.Join(s.dir, name)
	err = os.Link(tmpName, target)
	if errors.Is(err, fs.ErrExist) {
		target = filepath.Join(s.dir, name+"."+uuid.NewString())
		err = os.Link(tmpName, target)
	}
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", target, err)
	}
	return nil
}

// Close implements io.Closer. A file sender holds no resources.
func (s *Sender) Close() error {
	return nil
}

// Receiver replays the files present when it was built.
type Receiver struct {
	mu    sync.Mutex
	files []string
	next  int
}

// Len returns the number of files not yet received.
func (r *Receiver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files) - r.next
}

// Recv returns the contents of the next file, or io.EOF once every file has
// been returned.
func (r *Receiver) Recv(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.next >= len(r.files) {
		r.mu.Unlock()
		return nil, io.EOF
	}
	path := r.files[r.next]
	r.next++
	r.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Close implements io.Closer.
func (r *Receiver) Close() error {
	return nil
}
