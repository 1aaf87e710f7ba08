// Package attach maps local files to short-lived public URLs so the
// platform can fetch outbound attachments from this server.
package attach

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	robfigcron "github.com/robfig/cron/v3"
)

// Policy decides when a hosted attachment stops being servable.
type Policy string

const (
	// PolicyTTL serves an attachment until its TTL expires. This is the
	// default: platforms may legitimately probe or retry a fetch.
	PolicyTTL Policy = "ttl"
	// PolicyServeOnce evicts an attachment after its first successful
	// serve, giving at-most-once hosting.
	PolicyServeOnce Policy = "serve_once"
)

// Entry describes one hosted attachment.
type Entry struct {
	Path        string
	ContentType string
	CreatedAt   time.Time
}

// Cache hands out unique tokens for local files and serves them back at
// /attachments/<token>. Entries are evicted by a background sweep on
// TTL expiry and, under PolicyServeOnce, on first serve.
type Cache struct {
	policy    Policy
	ttl       time.Duration
	scheduler *robfigcron.Cron

	mu      sync.Mutex
	entries map[string]Entry

	now func() time.Time
}

// New creates a Cache with the given policy, entry lifetime and sweep
// schedule (a cron spec such as "@every 30s").
func New(policy Policy, ttl time.Duration, sweepSchedule string) (*Cache, error) {
	if policy == "" {
		policy = PolicyTTL
	}
	c := &Cache{
		policy:    policy,
		ttl:       ttl,
		scheduler: robfigcron.New(),
		entries:   make(map[string]Entry),
		now:       time.Now,
	}
	if _, err := c.scheduler.AddFunc(sweepSchedule, c.Sweep); err != nil {
		return nil, fmt.Errorf("attach: invalid sweep schedule %q: %w", sweepSchedule, err)
	}
	return c, nil
}

// Start begins the background eviction sweep.
func (c *Cache) Start() {
	c.scheduler.Start()
}

// Stop halts the background eviction sweep.
func (c *Cache) Stop() {
	c.scheduler.Stop()
}

// Host registers a local file and returns the token identifying it.
// Hosting the same file twice yields two distinct tokens; there is no
// dedup by content. The returned token is a crypto-random UUID, unique
// for the lifetime of the process.
func (c *Cache) Host(localPath string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("attach: cannot host %s: %w", localPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("attach: cannot host directory %s", localPath)
	}

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	token := uuid.NewString()
	c.mu.Lock()
	c.entries[token] = Entry{
		Path:        localPath,
		ContentType: contentType,
		CreatedAt:   c.now(),
	}
	c.mu.Unlock()
	return token, nil
}

// URLPath returns the public path an attachment token is served at.
func URLPath(token string) string {
	return "/attachments/" + token
}

// Resolve looks a token up and returns a copy of its entry. Under
// PolicyServeOnce the entry is evicted before Resolve returns, so the
// caller's copy is its own reference to the resource; a concurrent
// sweep cannot invalidate an in-flight serve.
func (c *Cache) Resolve(token string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[token]
	if !ok {
		return Entry{}, false
	}
	if c.expired(entry) {
		delete(c.entries, token)
		return Entry{}, false
	}
	if c.policy == PolicyServeOnce {
		delete(c.entries, token)
	}
	return entry, true
}

// Sweep removes every expired entry. It runs on the background schedule
// but may also be invoked directly.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for token, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, token)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("attach: swept expired attachments", "removed", removed)
	}
}

func (c *Cache) expired(entry Entry) bool {
	return c.ttl > 0 && c.now().Sub(entry.CreatedAt) > c.ttl
}

// ServeHTTP serves GET /attachments/<token>, answering 404 for unknown,
// expired or already-consumed tokens.
func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := path.Base(r.URL.Path)
	entry, ok := c.Resolve(token)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", entry.ContentType)
	http.ServeFile(w, r, entry.Path)
}
