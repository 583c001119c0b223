package storage

import (
	"context"

	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
)

// Store provides an interface for the local lap telemetry cache. Session data is fetched
// from a telemetry.Provider at most once and served from the local database afterward.
// Implementations are safe for concurrent use.
type Store interface {
	// EnsureIngested makes sure the session's telemetry is stored locally. On a cache hit
	// the existing entry is returned without contacting the provider. Otherwise the whole
	// session is fetched, normalised and written in a single transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - session: Session to ingest
	//
	// Returns:
	//   - entry: Cache entry describing the stored session
	//   - error: *telemetry.IngestionError if fetching or storing fails; nothing is
	//     retained in that case and the call can be retried
	EnsureIngested(ctx context.Context, session telemetry.SessionKey) (entry *CacheEntry, err error)

	// QueryLap resolves a lap of a driver using the selector and returns its metadata
	// and samples ordered by offset from the lap start.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - session: Ingested session
	//   - driver: Three-letter driver code; ignored for telemetry.SessionFastest
	//   - selector: Which lap to return
	//
	// Returns:
	//   - lap: Lap metadata
	//   - samples: Lap samples with non-decreasing distance
	//   - error: *telemetry.NotFoundError if the session, driver or lap has no data
	QueryLap(ctx context.Context, session telemetry.SessionKey, driver string, selector telemetry.LapSelector) (lap *telemetry.Lap, samples []telemetry.Sample, err error)

	// Drivers returns the codes of drivers with at least one stored lap, sorted.
	Drivers(ctx context.Context, session telemetry.SessionKey) ([]string, error)

	// Laps returns all stored laps of a driver ordered by lap number.
	Laps(ctx context.Context, session telemetry.SessionKey, driver string) ([]telemetry.Lap, error)

	// CacheEntry returns the cache entry of an ingested session or a
	// *telemetry.NotFoundError if the session has not been ingested.
	CacheEntry(ctx context.Context, session telemetry.SessionKey) (*CacheEntry, error)

	// Sessions returns all ingested sessions ordered by season, event and kind.
	Sessions(ctx context.Context) ([]CacheEntry, error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}
