// Package command implements a telemetry.Provider which runs an external exporter, for
// example a FastF1 export script, and reads the session telemetry it prints to stdout
// as JSON lines.
//
// Each line is one record:
//
//	{"type":"units","units":{"speed":"m/s"}}
//	{"type":"lap","driver":"VER","lap":12,"lapTime":74.165}
//	{"type":"sample","driver":"VER","lap":12,"time":3601.2,"distance":12.5,"x":-1120.0,"y":880.5,"speed":291,"throttle":100,"brake":0,"gear":8,"rpm":11500}
//
// Samples may precede the lap record of their lap. A lap without a lap record is untimed.
package command

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5

	// maxLineSize bounds a single JSON line
	maxLineSize = 1 << 20
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

var _ telemetry.Provider = (*Provider)(nil)

// WithLogger sets the logger for the provider
func WithLogger(logger *slog.Logger) func(p *Provider) {
	return func(p *Provider) {
		p.logger = logger.With(slog.String("provider", "command"), slog.String("path", p.path))
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(p *Provider) {
	return func(p *Provider) {
		if threshold > 0 {
			p.parseErrorsThreshold = threshold
		}
	}
}

// Provider runs an exporter command per session fetch. Arguments may contain the
// placeholders {season}, {event} and {kind}, which are substituted with the session
// being fetched.
type Provider struct {
	path string
	args []string

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// New creates a new Provider instance with a discard logger
func New(path string, args []string, options ...func(p *Provider)) *Provider {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	p := Provider{
		path:                 path,
		args:                 args,
		logger:               logger,
		parseErrorsThreshold: ParseErrorsThreshold,
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

// Cmd returns the command which exports the session.
func (p *Provider) Cmd(ctx context.Context, session telemetry.SessionKey) *exec.Cmd {
	r := strings.NewReplacer(
		"{season}", strconv.Itoa(session.Season),
		"{event}", session.Event,
		"{kind}", string(session.Kind),
	)

	args := make([]string, len(p.args))
	for i, arg := range p.args {
		args[i] = r.Replace(arg)
	}

	return exec.CommandContext(ctx, p.path, args...)
}

// Fetch runs the exporter and collects its output. The command must exit successfully,
// otherwise whatever was read is discarded.
func (p *Provider) Fetch(ctx context.Context, session telemetry.SessionKey) (*telemetry.SessionData, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := p.Cmd(ctx, session)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	logger := p.logger.With(slog.String("session", session.String()))
	logger.Info("exporting session telemetry...")

	b := newSessionBuilder(session)

	var g errgroup.Group
	g.Go(func() error {
		err := p.handleStdout(stdout, b, logger)
		if err != nil {
			cancel() // stop the exporter, its output is useless now
			_, _ = io.Copy(io.Discard, stdout)
		}
		return err
	})
	g.Go(func() error {
		return p.handleStderr(stderr, logger)
	})

	// Wait must only be called after all reads from the pipes have completed
	readErr := g.Wait()
	waitErr := cmd.Wait()

	if readErr != nil {
		return nil, readErr
	}
	if waitErr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("command exited with error: %w", context.Cause(ctx))
		}
		return nil, fmt.Errorf("command exited with error: %w", waitErr)
	}

	data := b.build()
	logger.Info("session telemetry exported", slog.Int("drivers", len(data.Drivers)))

	return data, nil
}

// handleStdout reads from stdout and parses records into the session builder.
func (p *Provider) handleStdout(stdout io.Reader, b *sessionBuilder, logger *slog.Logger) error {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		if err := b.parse(line); err != nil {
			parseErrors++
			logger.Warn(fmt.Sprintf("error parsing record: %s", err.Error()), slog.String("line", line))

			if parseErrors >= p.parseErrorsThreshold {
				return ErrTooManyParseErrors
			}

			continue
		}

		parseErrors = 0 // reset counter
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		return fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
	}

	return nil
}

// handleStderr reads from stderr and logs it.
func (p *Provider) handleStderr(stderr io.Reader, logger *slog.Logger) error {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		logger.Warn(fmt.Sprintf("%s >> %s", p.path, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		return fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
	}

	return nil
}

// record is a single line of exporter output
type record struct {
	Type    string           `json:"type"`
	Driver  string           `json:"driver"`
	Lap     int              `json:"lap"`
	LapTime *float64         `json:"lapTime"`
	Units   *telemetry.Units `json:"units"`

	telemetry.RawSample
}

type lapKey struct {
	driver string
	number int
}

// sessionBuilder accumulates records, keeping drivers and laps in order of appearance.
type sessionBuilder struct {
	data    telemetry.SessionData
	drivers map[string]int
	laps    map[lapKey]int
}

func newSessionBuilder(session telemetry.SessionKey) *sessionBuilder {
	return &sessionBuilder{
		data:    telemetry.SessionData{Session: session},
		drivers: make(map[string]int),
		laps:    make(map[lapKey]int),
	}
}

func (b *sessionBuilder) parse(line string) error {
	var r record
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return err
	}

	switch r.Type {
	case "units":
		if r.Units == nil {
			return errors.New("units record without units")
		}
		b.data.Units = *r.Units
		return nil

	case "lap":
		lap, err := b.lap(r.Driver, r.Lap)
		if err != nil {
			return err
		}
		lap.Time = r.LapTime
		return nil

	case "sample":
		lap, err := b.lap(r.Driver, r.Lap)
		if err != nil {
			return err
		}
		lap.Samples = append(lap.Samples, r.RawSample)
		return nil

	default:
		return fmt.Errorf("unknown record type %q", r.Type)
	}
}

func (b *sessionBuilder) lap(driver string, number int) (*telemetry.RawLap, error) {
	driver = strings.ToUpper(strings.TrimSpace(driver))
	if driver == "" {
		return nil, errors.New("record without driver")
	}
	if number <= 0 {
		return nil, fmt.Errorf("invalid lap number %d", number)
	}

	d, ok := b.drivers[driver]
	if !ok {
		d = len(b.data.Drivers)
		b.drivers[driver] = d
		b.data.Drivers = append(b.data.Drivers, telemetry.DriverData{Code: driver})
	}

	key := lapKey{driver: driver, number: number}
	l, ok := b.laps[key]
	if !ok {
		l = len(b.data.Drivers[d].Laps)
		b.laps[key] = l
		b.data.Drivers[d].Laps = append(b.data.Drivers[d].Laps, telemetry.RawLap{Number: number})
	}

	return &b.data.Drivers[d].Laps[l], nil
}

func (b *sessionBuilder) build() *telemetry.SessionData {
	data := b.data
	return &data
}
