// Package store persists per-source result maps as JSON files with a
// time-to-live on every entry.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"m3u-live-events/eventtime"
	"m3u-live-events/logger"
	"m3u-live-events/metrics"

	"github.com/goccy/go-json"
	"github.com/gosimple/slug"
)

var ErrNoTimestamp = errors.New("entry has no timestamp")

// Cache is one JSON file of key -> T. T must marshal to a JSON object; a
// numeric "timestamp" member on that object drives freshness.
type Cache[T any] struct {
	tag  string
	path string
	ttl  time.Duration
	now  func() eventtime.Stamp
	log  logger.Logger
}

type Option func(*options)

type options struct {
	now func() eventtime.Stamp
	log logger.Logger
}

// WithClock overrides the reference time. Defaults to the process start.
func WithClock(now func() eventtime.Stamp) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

func New[T any](dir, tag string, ttl time.Duration, opts ...Option) *Cache[T] {
	o := options{
		now: func() eventtime.Stamp { return eventtime.ProcessStart },
		log: logger.Default,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache[T]{
		tag:  tag,
		path: filepath.Join(dir, FileName(tag)),
		ttl:  ttl,
		now:  o.now,
		log:  o.log,
	}
}

// FileName is the on-disk name for a tag, e.g. "ROXIE-html" -> "roxie-html.json".
func FileName(tag string) string {
	return slug.Make(strings.ToLower(tag)) + ".json"
}

func (c *Cache[T]) Path() string       { return c.path }
func (c *Cache[T]) TTL() time.Duration { return c.ttl }

type stamped struct {
	Timestamp *float64 `json:"timestamp"`
}

func (c *Cache[T]) read() map[string]json.RawMessage {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Debugf("Cache %s unreadable: %v", c.tag, err)
		}
		metrics.CacheLoads.WithLabelValues(c.tag, "miss").Inc()
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		c.log.Debugf("Cache %s is corrupt, treating as empty: %v", c.tag, err)
		metrics.CacheLoads.WithLabelValues(c.tag, "corrupt").Inc()
		return nil
	}
	metrics.CacheLoads.WithLabelValues(c.tag, "hit").Inc()
	return raw
}

// Fresh reports whether ts is younger than the TTL. A nil ts falls back to
// today at 08:00 in the reference zone.
func (c *Cache[T]) Fresh(ts *float64) bool {
	now := c.now()
	var at eventtime.Stamp
	if ts == nil {
		at = eventtime.Default8(now)
	} else {
		at = eventtime.At(*ts, eventtime.DefaultZone)
	}
	return now.Sub(at.Clean()) < c.ttl
}

func timestampOf(raw json.RawMessage) (*float64, error) {
	var s stamped
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s.Timestamp == nil {
		return nil, ErrNoTimestamp
	}
	return s.Timestamp, nil
}

func (c *Cache[T]) decode(raw map[string]json.RawMessage, keep func(json.RawMessage) bool) map[string]T {
	out := make(map[string]T, len(raw))
	for key, msg := range raw {
		if keep != nil && !keep(msg) {
			continue
		}
		var v T
		if err := json.Unmarshal(msg, &v); err != nil {
			c.log.Debugf("Cache %s: skipping %q: %v", c.tag, key, err)
			continue
		}
		out[key] = v
	}
	return out
}

// Load returns the entries that are still fresh. A missing or malformed file
// is an empty map.
func (c *Cache[T]) Load() map[string]T {
	raw := c.read()
	if raw == nil {
		return map[string]T{}
	}
	return c.decode(raw, func(msg json.RawMessage) bool {
		ts, err := timestampOf(msg)
		if err != nil && !errors.Is(err, ErrNoTimestamp) {
			return false
		}
		return c.Fresh(ts)
	})
}

// Write replaces the file with m. The data lands in a temp file in the same
// directory first, so readers see either the old or the new content.
func (c *Cache[T]) Write(m map[string]T) error {
	if m == nil {
		m = map[string]T{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode cache %s: %w", c.tag, err)
	}

	if err := WriteAtomic(c.path, bytes.TrimRight(buf.Bytes(), "\n")); err != nil {
		return fmt.Errorf("write cache %s: %w", c.tag, err)
	}
	return nil
}

// WriteAtomic writes data to path through a synced temp file and a rename.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
