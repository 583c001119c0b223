package storage

import (
	"time"

	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
)

// CacheEntry records that a session's telemetry has been fully ingested. It is written
// once, in the same transaction as the session's laps and samples, and never mutated.
type CacheEntry struct {
	Session     telemetry.SessionKey `json:"session"`
	IngestID    string               `json:"ingestID"`    // Unique identifier of the ingestion run
	IngestedAt  time.Time            `json:"ingestedAt"`  // When the ingestion was committed
	DriverCount int                  `json:"driverCount"` // Drivers with at least one stored lap
	LapCount    int                  `json:"lapCount"`    // Timed laps stored
	SampleCount int                  `json:"sampleCount"` // Telemetry samples stored
}

type lapRow struct {
	ID              int64
	SessionKey      string
	Driver          string
	LapNumber       int
	LapTime         float64
	SessionFastest  bool
	PersonalFastest bool
	PersonalSlowest bool
}

// preparedLap is a normalised lap ready to be inserted
type preparedLap struct {
	lap     telemetry.Lap
	samples []telemetry.Sample
}
