package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
)

// sampleBatchSize keeps a single multi-row INSERT below SQLite's bound variable limit.
const sampleBatchSize = 500

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && cErr != sql.ErrTxDone && *err == nil {
		*err = cErr
	}
}

// insertSamples writes samples of a lap using multi-row inserts, in batches.
func insertSamples(ctx context.Context, tx *sql.Tx, lapID int64, samples []telemetry.Sample) error {
	seq := 0
	for batch := range slices.Chunk(samples, sampleBatchSize) {
		values := make([]any, 0, len(batch)*sampleColumnCount)

		var sb strings.Builder
		sb.WriteString(insertSamplesSQL)

		for i, s := range batch {
			values = append(values,
				lapID,
				seq,
				s.Offset.Seconds(),
				s.Distance,
				s.X,
				s.Y,
				s.Speed,
				s.Throttle,
				s.Brake,
				s.Gear,
				s.RPM,
			)
			seq++

			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(sampleValuesPlaceholder)
		}

		if _, err := tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting samples: %w", err)
		}
	}
	return nil
}

func scanLap(row interface{ Scan(...any) error }) (*lapRow, error) {
	var r lapRow
	if err := row.Scan(
		&r.ID,
		&r.SessionKey,
		&r.Driver,
		&r.LapNumber,
		&r.LapTime,
		&r.SessionFastest,
		&r.PersonalFastest,
		&r.PersonalSlowest,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *lapRow) toLap(session telemetry.SessionKey) *telemetry.Lap {
	return &telemetry.Lap{
		Session:           session,
		Driver:            r.Driver,
		Number:            r.LapNumber,
		Time:              secondsToDuration(r.LapTime),
		IsSessionFastest:  r.SessionFastest,
		IsPersonalFastest: r.PersonalFastest,
		IsPersonalSlowest: r.PersonalSlowest,
	}
}

func scanCacheEntry(row interface{ Scan(...any) error }) (*CacheEntry, error) {
	var (
		e    CacheEntry
		key  string
		kind string
	)
	if err := row.Scan(
		&key,
		&e.Session.Season,
		&e.Session.Event,
		&kind,
		&e.IngestID,
		&e.IngestedAt,
		&e.DriverCount,
		&e.LapCount,
		&e.SampleCount,
	); err != nil {
		return nil, err
	}
	e.Session.Kind = telemetry.SessionKind(kind)
	return &e, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
