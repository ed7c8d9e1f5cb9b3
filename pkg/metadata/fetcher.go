package metadata

import (
	"context"
	"errors"

	"github.com/acollins/skyboard/pkg/retry"
)

// Fetcher wraps a metadata source with bounded retries and backoff.
//
// Transient failures (timeouts, 5xx, rate limits) are retried per the
// configured policy. ErrNotFound is permanent and fails immediately; there
// is no point asking a registry again within the same tick.
type Fetcher struct {
	source Source
	cfg    retry.Config
}

// NewFetcher creates a retrying fetcher over a source.
func NewFetcher(source Source, cfg retry.Config) *Fetcher {
	return &Fetcher{source: source, cfg: cfg}
}

// Fetch looks up metadata with retries and returns the full outcome,
// including the number of attempts made.
func (f *Fetcher) Fetch(ctx context.Context, icao24 string) retry.Outcome[Aircraft] {
	return retry.Do(ctx, f.cfg, func(ctx context.Context) (Aircraft, error) {
		meta, err := f.source.Lookup(ctx, icao24)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Aircraft{}, &retry.Permanent{Err: err}
			}
			return Aircraft{}, err
		}
		return meta, nil
	})
}
