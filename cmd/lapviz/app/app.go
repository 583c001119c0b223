package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roman-kulish/lap-telemetry/internal/align"
	"github.com/roman-kulish/lap-telemetry/internal/frames"
	"github.com/roman-kulish/lap-telemetry/internal/provider/archive"
	"github.com/roman-kulish/lap-telemetry/internal/provider/command"
	"github.com/roman-kulish/lap-telemetry/internal/storage"
	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
)

// App wires the telemetry store, the aligner and the frame builder
type App struct {
	config  *Config
	logger  *slog.Logger
	store   storage.Store
	aligner *align.Aligner
	builder *frames.Builder
}

// New creates the application from the configuration. The store is opened lazily.
func New(config *Config, logger *slog.Logger) (*App, error) {
	provider, err := NewProvider(config.Provider, logger)
	if err != nil {
		return nil, err
	}

	store := storage.NewSqliteStore(
		config.Storage.Path,
		provider,
		storage.WithLogger(logger.With(slog.String("component", "storage"))),
		storage.WithIngestTimeout(config.Storage.IngestTimeout),
	)

	return NewWithStore(config, logger, store), nil
}

// NewWithStore creates the application using an existing store.
func NewWithStore(config *Config, logger *slog.Logger, store storage.Store) *App {
	return &App{
		config:  config,
		logger:  logger,
		store:   store,
		aligner: align.New(align.WithFrameCount(config.Align.FrameCount)),
		builder: frames.NewBuilder(),
	}
}

// NewProvider creates the configured upstream telemetry provider
func NewProvider(c ProviderConfig, logger *slog.Logger) (telemetry.Provider, error) {
	switch c.Type {
	case ProviderArchive:
		return archive.New(c.Archive.Root), nil

	case ProviderCommand:
		return command.New(
			c.Command.Path,
			c.Command.Args,
			command.WithLogger(logger),
			command.WithParseErrorsThreshold(c.Command.ParseErrorsThreshold),
		), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %q", c.Type)
	}
}

// Export fetches a session from the command provider and writes it to the archive root,
// so that it can later be ingested offline with the archive provider. It returns the
// path of the written file.
func (a *App) Export(ctx context.Context, session telemetry.SessionKey) (string, error) {
	if a.config.Provider.Type != ProviderCommand {
		return "", fmt.Errorf("export requires the %q provider, configured: %q", ProviderCommand, a.config.Provider.Type)
	}
	if a.config.Provider.Archive.Root == "" {
		return "", errors.New("export requires the archive root")
	}
	if err := session.Validate(); err != nil {
		return "", fmt.Errorf("invalid session: %w", err)
	}

	provider, err := NewProvider(a.config.Provider, a.logger)
	if err != nil {
		return "", err
	}

	data, err := provider.Fetch(ctx, session)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", session, err)
	}
	data.Session = session

	path, err := archive.New(a.config.Provider.Archive.Root).Save(data)
	if err != nil {
		return "", fmt.Errorf("saving %s: %w", session, err)
	}

	a.logger.Info("session exported", slog.String("session", session.String()), slog.String("path", path))
	return path, nil
}

// Store returns the telemetry store
func (a *App) Store() storage.Store {
	return a.store
}

// Close releases the store
func (a *App) Close() error {
	return a.store.Close()
}

// Comparison is a driver's lap overlaid on the session's fastest lap
type Comparison struct {
	Session   telemetry.SessionKey
	Lap       *telemetry.Lap // Selected lap, car A
	Reference *telemetry.Lap // Session fastest lap, car B
	Aligned   *align.Aligned
	Frames    *frames.Sequence
}

// Compare ingests the session if needed, loads the selected lap and the session's
// fastest lap, aligns them and builds the frames colored by the variable.
func (a *App) Compare(ctx context.Context, session telemetry.SessionKey, driver string, selector telemetry.LapSelector, v frames.Variable) (*Comparison, error) {
	if _, err := a.store.EnsureIngested(ctx, session); err != nil {
		return nil, err
	}

	lap, samples, err := a.store.QueryLap(ctx, session, driver, selector)
	if err != nil {
		return nil, fmt.Errorf("loading selected lap: %w", err)
	}

	ref, refSamples, err := a.store.QueryLap(ctx, session, "", telemetry.SessionFastest)
	if err != nil {
		return nil, fmt.Errorf("loading session fastest lap: %w", err)
	}

	aligned, err := a.aligner.Align(samples, refSamples)
	if err != nil {
		return nil, fmt.Errorf("aligning %s with %s: %w", lap.Label(), ref.Label(), err)
	}

	if aligned.DroppedA > 0 || aligned.DroppedB > 0 {
		a.logger.Debug("dropped unusable samples",
			slog.String("lap", lap.Label()),
			slog.Int("dropped", aligned.DroppedA),
			slog.String("reference", ref.Label()),
			slog.Int("referenceDropped", aligned.DroppedB))
	}

	return &Comparison{
		Session:   session,
		Lap:       lap,
		Reference: ref,
		Aligned:   aligned,
		Frames:    a.builder.Build(aligned, v),
	}, nil
}
