// Package pagestate keeps per-page view state for a code review page and
// performs the DOM work the review extension needs.
//
// State for a page lives in a single JSON object stored under the page URL in
// a localStorage-shaped key-value store:
//
//	{"files": {"diff-42": true}, "commitNum": 7, "lastViewed": 1700000000000}
//
// The object is read, merged in memory and written back whole on every
// update. Reads never fail: a missing or unparsable entry is an empty object.
package pagestate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"
)

// Keys of the well-known fields in a page cache.
const (
	FilesKey      = "files"
	CommitNumKey  = "commitNum"
	LastViewedKey = "lastViewed"
)

// ErrUndefinedKey is returned when an update is attempted without a key.
var ErrUndefinedKey = errors.New("key is undefined")

// KeyValueStore is the browser's origin-scoped string store.
type KeyValueStore interface {
	GetItem(ctx context.Context, key string) (value string, found bool, err error)
	SetItem(ctx context.Context, key, value string) error
}

// URLProvider reports the URL of the page being viewed.
type URLProvider interface {
	CurrentURL(ctx context.Context) (string, error)
}

// StaticURL is a URLProvider for a fixed page.
type StaticURL string

func (u StaticURL) CurrentURL(ctx context.Context) (string, error) {
	return string(u), nil
}

// PageCache is the decoded state object for one page. Numbers are kept as
// json.Number so they survive a read-modify-write unchanged.
type PageCache map[string]any

// Files returns the visibility flag per file id. Entries that are not booleans
// are skipped.
func (c PageCache) Files() map[string]bool {
	files := make(map[string]bool)
	raw, _ := c[FilesKey].(map[string]any)
	for id, v := range raw {
		if visible, ok := v.(bool); ok {
			files[id] = visible
		}
	}
	return files
}

// Int returns the integer stored under key.
func (c PageCache) Int(key string) (int64, bool) {
	switch v := c[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// Helper reads and writes the page cache for the current page.
type Helper struct {
	store   KeyValueStore
	url     URLProvider
	now     func() time.Time
	onError func(error)
}

// Option configures a Helper.
type Option func(*Helper)

// WithClock overrides the time source used for lastViewed.
func WithClock(now func() time.Time) Option {
	return func(h *Helper) {
		h.now = now
	}
}

// WithErrorHandler receives errors from page event handlers, which have no
// caller to return them to.
func WithErrorHandler(fn func(error)) Option {
	return func(h *Helper) {
		h.onError = fn
	}
}

// New returns a Helper over store for the page reported by url.
func New(store KeyValueStore, url URLProvider, opts ...Option) *Helper {
	h := &Helper{
		store:   store,
		url:     url,
		now:     time.Now,
		onError: logHandlerError,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func logHandlerError(err error) {
	pterm.Debug.Printf("Page handler failed: %v\n", err)
}

// GetPageCache returns the state object for the current page, or an empty one.
func (h *Helper) GetPageCache(ctx context.Context) PageCache {
	url, err := h.url.CurrentURL(ctx)
	if err != nil {
		pterm.Debug.Printf("Could not resolve page url: %v\n", err)
		return PageCache{}
	}
	raw, found, err := h.store.GetItem(ctx, url)
	if err != nil {
		pterm.Debug.Printf("Could not read page cache for %s: %v\n", url, err)
		return PageCache{}
	}
	if !found {
		return PageCache{}
	}
	return decodePageCache(raw)
}

// ResetCacheForPage replaces the current page's state with an empty object.
func (h *Helper) ResetCacheForPage(ctx context.Context) error {
	return h.write(ctx, PageCache{})
}

// GetCachedFiles returns the cached visibility of each file on the page.
func (h *Helper) GetCachedFiles(ctx context.Context) map[string]bool {
	return h.GetPageCache(ctx).Files()
}

// SetFileInCache records whether fileID should be visible.
func (h *Helper) SetFileInCache(ctx context.Context, fileID string, visible bool) error {
	files, _ := h.GetPageCache(ctx)[FilesKey].(map[string]any)
	if files == nil {
		files = make(map[string]any)
	}
	files[fileID] = visible
	return h.UpdateLocalStorage(ctx, FilesKey, files)
}

// GetCachedCommitNumber returns the cached commit count, or -1 when the page
// was never recorded. Zero and negative counts also report -1.
func (h *Helper) GetCachedCommitNumber(ctx context.Context) int64 {
	n, ok := h.GetPageCache(ctx).Int(CommitNumKey)
	if !ok || n <= 0 {
		return -1
	}
	return n
}

// SetCachedCommitNumber records the commit count shown on the page.
func (h *Helper) SetCachedCommitNumber(ctx context.Context, n int64) error {
	return h.UpdateLocalStorage(ctx, CommitNumKey, n)
}

// GetLastViewed returns the last visit as Unix milliseconds, or -1.
func (h *Helper) GetLastViewed(ctx context.Context) int64 {
	ms, ok := h.GetPageCache(ctx).Int(LastViewedKey)
	if !ok || ms == 0 {
		return -1
	}
	return ms
}

// SetLastViewed stores the current time as the last visit.
func (h *Helper) SetLastViewed(ctx context.Context) error {
	return h.UpdateLocalStorage(ctx, LastViewedKey, h.now().UnixMilli())
}

// UpdateLocalStorage merges key=value into the page cache and writes the whole
// object back. An empty key is rejected without touching the store.
func (h *Helper) UpdateLocalStorage(ctx context.Context, key string, value any) error {
	if key == "" {
		pterm.Warning.Println(ErrUndefinedKey.Error())
		return ErrUndefinedKey
	}
	cache := h.GetPageCache(ctx)
	cache[key] = value
	return h.write(ctx, cache)
}

func (h *Helper) write(ctx context.Context, cache PageCache) error {
	url, err := h.url.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve page url: %w", err)
	}
	data, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("failed to encode page cache: %w", err)
	}
	if err := h.store.SetItem(ctx, url, string(data)); err != nil {
		return fmt.Errorf("failed to write page cache: %w", err)
	}
	return nil
}

func decodePageCache(raw string) PageCache {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var cache PageCache
	if err := dec.Decode(&cache); err != nil || cache == nil || dec.More() {
		return PageCache{}
	}
	return cache
}
