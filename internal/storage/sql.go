package storage

const (
	selectSessionSQL = `
SELECT
    session_key,
    season,
    event,
    kind,
    ingest_id,
    ingested_at,
    driver_count,
    lap_count,
    sample_count
FROM sessions
WHERE
    session_key = ?`

	selectSessionsSQL = `
SELECT
    session_key,
    season,
    event,
    kind,
    ingest_id,
    ingested_at,
    driver_count,
    lap_count,
    sample_count
FROM sessions
ORDER BY season, event, kind`

	insertSessionSQL = `
INSERT INTO sessions (
                      session_key,
                      season,
                      event,
                      kind,
                      ingest_id,
                      ingested_at,
                      driver_count,
                      lap_count,
                      sample_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertLapSQL = `
INSERT INTO laps (
                  session_key,
                  driver,
                  lap_number,
                  lap_time_s,
                  session_fastest,
                  personal_fastest,
                  personal_slowest)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	lapColumns = `
    id,
    session_key,
    driver,
    lap_number,
    lap_time_s,
    session_fastest,
    personal_fastest,
    personal_slowest`

	selectLapByNumberSQL = `
SELECT` + lapColumns + `
FROM laps
WHERE
    session_key = ?
    AND driver = ?
    AND lap_number = ?`

	selectDriverFastestLapSQL = `
SELECT` + lapColumns + `
FROM laps
WHERE
    session_key = ?
    AND driver = ?
ORDER BY lap_time_s, lap_number
LIMIT 1`

	selectDriverSlowestLapSQL = `
SELECT` + lapColumns + `
FROM laps
WHERE
    session_key = ?
    AND driver = ?
ORDER BY lap_time_s DESC, lap_number
LIMIT 1`

	selectSessionFastestLapSQL = `
SELECT` + lapColumns + `
FROM laps
WHERE
    session_key = ?
ORDER BY session_fastest DESC, lap_time_s, lap_number, driver
LIMIT 1`

	selectDriverLapsSQL = `
SELECT` + lapColumns + `
FROM laps
WHERE
    session_key = ?
    AND driver = ?
ORDER BY lap_number`

	selectDriversSQL = `
SELECT DISTINCT driver
FROM laps
WHERE
    session_key = ?
ORDER BY driver`

	selectSamplesSQL = `
SELECT
    offset_s,
    distance_m,
    x,
    y,
    speed,
    throttle,
    brake,
    gear,
    rpm
FROM samples
WHERE
    lap_id = ?
ORDER BY offset_s, seq`

	insertSamplesSQL = `
INSERT INTO samples (
                     lap_id,
                     seq,
                     offset_s,
                     distance_m,
                     x,
                     y,
                     speed,
                     throttle,
                     brake,
                     gear,
                     rpm)
VALUES `

	sampleValuesPlaceholder = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	sampleColumnCount       = 11
)
