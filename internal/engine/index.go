package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"scorch/internal/scrape"
	"scorch/internal/urlutil"
)

const indexKeyPrefix = "scorch:index:"

// indexEntry is the cached shape of a previously fetched page. Only
// plain fetches are cached: screenshots, actions, and PDFs are not.
type indexEntry struct {
	URL         string    `json:"url"`
	HTML        string    `json:"html"`
	StatusCode  int       `json:"statusCode"`
	ContentType string    `json:"contentType"`
	StoredAt    time.Time `json:"storedAt"`
}

// Index serves recent scrapes out of redis, skipping the network
// entirely on a hit. Misses are recoverable and fall through to the
// next engine.
type Index struct {
	rdb    *redis.Client
	maxAge time.Duration
	ttl    time.Duration
}

// NewIndex builds the index engine. maxAge bounds how stale a served
// entry may be; ttl is the redis expiry for stored entries.
func NewIndex(rdb *redis.Client, maxAge, ttl time.Duration) *Index {
	return &Index{rdb: rdb, maxAge: maxAge, ttl: ttl}
}

func (i *Index) Name() string { return "index" }

func (i *Index) Scrape(ctx context.Context, req *scrape.EngineRequest) (*scrape.EngineResult, error) {
	key := indexKeyPrefix + urlutil.Normalize(req.URL)

	raw, err := i.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &scrape.IndexMissError{URL: req.URL}
	}
	if err != nil {
		return nil, &scrape.EngineError{Engine: i.Name(), Err: err}
	}

	var entry indexEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, &scrape.IndexMissError{URL: req.URL}
	}
	if i.maxAge > 0 && time.Since(entry.StoredAt) > i.maxAge {
		return nil, &scrape.IndexMissError{URL: req.URL}
	}

	return &scrape.EngineResult{
		URL:         entry.URL,
		HTML:        entry.HTML,
		StatusCode:  entry.StatusCode,
		ContentType: entry.ContentType,
		Cached:      true,
	}, nil
}

// Store writes a successful fetch back to the index. Failures are
// non-fatal for the scrape and swallowed by the caller.
func (i *Index) Store(ctx context.Context, sourceURL string, res *scrape.EngineResult) error {
	if res.HTML == "" || res.Cached || len(res.PDFBytes) > 0 {
		return nil
	}
	entry := indexEntry{
		URL:         res.URL,
		HTML:        res.HTML,
		StatusCode:  res.StatusCode,
		ContentType: res.ContentType,
		StoredAt:    time.Now().UTC(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := indexKeyPrefix + urlutil.Normalize(sourceURL)
	return i.rdb.Set(ctx, key, raw, i.ttl).Err()
}
