package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
)

func (s *SqliteStore) CacheEntry(ctx context.Context, session telemetry.SessionKey) (entry *CacheEntry, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	entry, err = scanCacheEntry(db.QueryRowContext(ctx, selectSessionSQL, session.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &telemetry.NotFoundError{Session: session}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return entry, nil
}

func (s *SqliteStore) Sessions(ctx context.Context) (entries []CacheEntry, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var entry *CacheEntry
		if entry, err = scanCacheEntry(rows); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		entries = append(entries, *entry)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating sessions: %w", err)
	}
	return
}

func (s *SqliteStore) Drivers(ctx context.Context, session telemetry.SessionKey) (drivers []string, err error) {
	if _, err = s.CacheEntry(ctx, session); err != nil {
		return
	}

	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectDriversSQL, session.String())
	if err != nil {
		err = fmt.Errorf("querying drivers: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var code string
		if err = rows.Scan(&code); err != nil {
			err = fmt.Errorf("scanning driver: %w", err)
			return
		}
		drivers = append(drivers, code)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating drivers: %w", err)
	}
	return
}

func (s *SqliteStore) Laps(ctx context.Context, session telemetry.SessionKey, driver string) (laps []telemetry.Lap, err error) {
	if _, err = s.CacheEntry(ctx, session); err != nil {
		return
	}

	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	driver = normalizeDriver(driver)

	rows, err := db.QueryContext(ctx, selectDriverLapsSQL, session.String(), driver)
	if err != nil {
		err = fmt.Errorf("querying laps: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r *lapRow
		if r, err = scanLap(rows); err != nil {
			err = fmt.Errorf("scanning lap: %w", err)
			return
		}
		laps = append(laps, *r.toLap(session))
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating laps: %w", err)
		return
	}

	if len(laps) == 0 {
		err = &telemetry.NotFoundError{Session: session, Driver: driver}
	}
	return
}

func (s *SqliteStore) QueryLap(ctx context.Context, session telemetry.SessionKey, driver string, selector telemetry.LapSelector) (lap *telemetry.Lap, samples []telemetry.Sample, err error) {
	if _, err = s.CacheEntry(ctx, session); err != nil {
		return
	}

	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	driver = normalizeDriver(driver)
	key := session.String()

	var row *sql.Row
	switch {
	case selector.IsSessionFastest():
		driver = ""
		row = db.QueryRowContext(ctx, selectSessionFastestLapSQL, key)
	case selector.IsDriverFastest():
		row = db.QueryRowContext(ctx, selectDriverFastestLapSQL, key, driver)
	case selector.IsDriverSlowest():
		row = db.QueryRowContext(ctx, selectDriverSlowestLapSQL, key, driver)
	default:
		n, ok := selector.Number()
		if !ok {
			err = fmt.Errorf("invalid lap selector: %s", selector)
			return
		}
		row = db.QueryRowContext(ctx, selectLapByNumberSQL, key, driver, n)
	}

	r, err := scanLap(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = &telemetry.NotFoundError{Session: session, Driver: driver, Selector: selector.String()}
		return
	}
	if err != nil {
		err = fmt.Errorf("scanning lap: %w", err)
		return
	}

	if samples, err = s.lapSamples(ctx, db, r.ID); err != nil {
		return
	}
	if len(samples) == 0 {
		err = &telemetry.NotFoundError{Session: session, Driver: driver, Selector: selector.String()}
		return
	}

	return r.toLap(session), samples, nil
}

func (s *SqliteStore) lapSamples(ctx context.Context, db *sql.DB, lapID int64) (samples []telemetry.Sample, err error) {
	stmt, err := db.PrepareContext(ctx, selectSamplesSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	rows, err := stmt.QueryContext(ctx, lapID)
	if err != nil {
		err = fmt.Errorf("querying samples: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			smp    telemetry.Sample
			offset float64
		)
		if err = rows.Scan(
			&offset,
			&smp.Distance,
			&smp.X,
			&smp.Y,
			&smp.Speed,
			&smp.Throttle,
			&smp.Brake,
			&smp.Gear,
			&smp.RPM,
		); err != nil {
			err = fmt.Errorf("scanning sample: %w", err)
			return
		}
		smp.Offset = secondsToDuration(offset)
		samples = append(samples, smp)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating samples: %w", err)
	}
	return
}
