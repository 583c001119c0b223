package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
)

const lockRetryDelay = 100 * time.Millisecond

var errNoProvider = errors.New("no telemetry provider configured")

func (s *SqliteStore) EnsureIngested(ctx context.Context, session telemetry.SessionKey) (*CacheEntry, error) {
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}

	entry, err := s.CacheEntry(ctx, session)
	switch {
	case err == nil:
		return entry, nil
	case !errors.Is(err, telemetry.ErrNotFound):
		return nil, &telemetry.IngestionError{Session: session, Op: "lookup", Err: err}
	}

	// Concurrent callers for the same session share one ingestion run. The run is
	// detached from the caller's cancellation and bounded by the ingest timeout
	// instead, so that one caller giving up does not fail the others.
	ch := s.ingestGroup.DoChan(session.String(), func() (any, error) {
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.ingestTimeout)
		defer cancel()

		return s.ingest(ictx, session)
	})

	select {
	case <-ctx.Done():
		return nil, &telemetry.IngestionError{Session: session, Op: "wait", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*CacheEntry), nil
	}
}

// ingest fetches and stores a session while holding the ingestion lock. The cache entry
// is checked again under the lock, since another process may have completed the same
// ingestion in the meantime.
func (s *SqliteStore) ingest(ctx context.Context, session telemetry.SessionKey) (*CacheEntry, error) {
	select {
	case s.ingestSem <- struct{}{}:
	case <-ctx.Done():
		return nil, &telemetry.IngestionError{Session: session, Op: "lock", Err: ctx.Err()}
	}
	defer func() { <-s.ingestSem }()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, &telemetry.IngestionError{Session: session, Op: "lock", Err: err}
	}
	if !locked {
		return nil, &telemetry.IngestionError{Session: session, Op: "lock", Err: fmt.Errorf("lock %s is held", s.lock.Path())}
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release ingestion lock", slog.String("lock", s.lock.Path()), slog.Any("error", err))
		}
	}()

	entry, err := s.CacheEntry(ctx, session)
	switch {
	case err == nil:
		return entry, nil
	case !errors.Is(err, telemetry.ErrNotFound):
		return nil, &telemetry.IngestionError{Session: session, Op: "lookup", Err: err}
	}

	if s.provider == nil {
		return nil, &telemetry.IngestionError{Session: session, Op: "fetch", Err: errNoProvider}
	}

	start := time.Now()
	s.logger.Info("fetching session telemetry", slog.String("session", session.String()))

	data, err := s.provider.Fetch(ctx, session)
	if err != nil {
		return nil, &telemetry.IngestionError{Session: session, Op: "fetch", Err: err}
	}

	laps := prepareLaps(session, data)

	entry = &CacheEntry{
		Session:    session,
		IngestID:   uuid.NewString(),
		IngestedAt: time.Now().UTC().Truncate(time.Millisecond),
		LapCount:   len(laps),
	}

	var prev string
	for _, pl := range laps {
		if pl.lap.Driver != prev {
			entry.DriverCount++
			prev = pl.lap.Driver
		}
		entry.SampleCount += len(pl.samples)
	}

	if err = s.storeSession(ctx, entry, laps); err != nil {
		return nil, &telemetry.IngestionError{Session: session, Op: "store", Err: err}
	}

	s.logger.Info("session ingested",
		slog.String("session", session.String()),
		slog.String("ingestID", entry.IngestID),
		slog.Int("drivers", entry.DriverCount),
		slog.Int("laps", entry.LapCount),
		slog.String("samples", humanize.Comma(int64(entry.SampleCount))),
		slog.Duration("took", time.Since(start)))

	return entry, nil
}

// storeSession writes the cache entry, laps and samples in a single transaction.
func (s *SqliteStore) storeSession(ctx context.Context, entry *CacheEntry, laps []preparedLap) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	key := entry.Session.String()

	if _, err = tx.ExecContext(
		ctx,
		insertSessionSQL,
		key,
		entry.Session.Season,
		entry.Session.Event,
		string(entry.Session.Kind),
		entry.IngestID,
		entry.IngestedAt,
		entry.DriverCount,
		entry.LapCount,
		entry.SampleCount,
	); err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertLapSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, pl := range laps {
		result, err := stmt.ExecContext(
			ctx,
			key,
			pl.lap.Driver,
			pl.lap.Number,
			pl.lap.Time.Seconds(),
			pl.lap.IsSessionFastest,
			pl.lap.IsPersonalFastest,
			pl.lap.IsPersonalSlowest,
		)
		if err != nil {
			return fmt.Errorf("inserting lap %s: %w", pl.lap.Label(), err)
		}

		lapID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting lap ID: %w", err)
		}

		if err = insertSamples(ctx, tx, lapID, pl.samples); err != nil {
			return fmt.Errorf("lap %s: %w", pl.lap.Label(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// prepareLaps normalises the fetched session into laps ready for storage, sorted by
// driver and lap number. Laps without a valid lap time or without usable samples are
// skipped, as are repeated lap numbers of a driver.
func prepareLaps(session telemetry.SessionKey, data *telemetry.SessionData) []preparedLap {
	if data == nil {
		return nil
	}

	var laps []preparedLap
	drivers := make(map[string]bool, len(data.Drivers))

	for _, d := range data.Drivers {
		code := normalizeDriver(d.Code)
		if code == "" || drivers[code] {
			continue
		}
		drivers[code] = true

		seen := make(map[int]bool, len(d.Laps))
		first := len(laps)

		for _, raw := range d.Laps {
			if raw.Number <= 0 || seen[raw.Number] {
				continue
			}

			lapTime, ok := telemetry.LapDuration(raw.Time)
			if !ok {
				continue
			}

			samples := telemetry.Normalize(raw, data.Units)
			if len(samples) == 0 {
				continue
			}

			seen[raw.Number] = true
			laps = append(laps, preparedLap{
				lap: telemetry.Lap{
					Session: session,
					Driver:  code,
					Number:  raw.Number,
					Time:    lapTime,
				},
				samples: samples,
			})
		}

		markPersonalLaps(laps[first:])
	}

	slices.SortStableFunc(laps, func(a, b preparedLap) int {
		return cmp.Or(
			strings.Compare(a.lap.Driver, b.lap.Driver),
			cmp.Compare(a.lap.Number, b.lap.Number),
		)
	})

	if i := fastestLap(laps); i >= 0 {
		laps[i].lap.IsSessionFastest = true
	}
	return laps
}

// markPersonalLaps flags the fastest and slowest lap of one driver. Ties go to the
// lower lap number.
func markPersonalLaps(laps []preparedLap) {
	if len(laps) == 0 {
		return
	}

	fastest, slowest := 0, 0
	for i := 1; i < len(laps); i++ {
		if lapLess(laps[i].lap, laps[fastest].lap) {
			fastest = i
		}
		if laps[i].lap.Time > laps[slowest].lap.Time ||
			(laps[i].lap.Time == laps[slowest].lap.Time && laps[i].lap.Number < laps[slowest].lap.Number) {
			slowest = i
		}
	}

	laps[fastest].lap.IsPersonalFastest = true
	laps[slowest].lap.IsPersonalSlowest = true
}

func fastestLap(laps []preparedLap) int {
	fastest := -1
	for i := range laps {
		if fastest < 0 || lapLess(laps[i].lap, laps[fastest].lap) {
			fastest = i
		}
	}
	return fastest
}

// lapLess orders laps by lap time, then lap number, then driver code.
func lapLess(a, b telemetry.Lap) bool {
	return cmp.Or(
		cmp.Compare(a.Time, b.Time),
		cmp.Compare(a.Number, b.Number),
		strings.Compare(a.Driver, b.Driver),
	) < 0
}

func normalizeDriver(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
