package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/roman-kulish/lap-telemetry/internal/frames"
	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
	"github.com/spf13/cobra"
)

// commandContext holds state shared by the commands: flags of the root command and the
// lazily created application.
type commandContext struct {
	logger   *slog.Logger
	logLevel *slog.LevelVar

	configPath string
	dbPath     string
	level      string

	config *Config
	app    *App
}

func (c *commandContext) load() error {
	config, err := LoadConfig(c.configPath)
	if err != nil {
		return err
	}

	if c.dbPath != "" {
		config.Storage.Path = c.dbPath
	}
	if c.level != "" {
		config.LogLevel = c.level
	}

	level, err := config.Level()
	if err != nil {
		return err
	}
	c.logLevel.Set(level)

	c.config = config
	return nil
}

func (c *commandContext) application() (*App, error) {
	if c.app != nil {
		return c.app, nil
	}

	a, err := New(c.config, c.logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	return c.app.Close()
}

// sessionFlags are the flags identifying a session
type sessionFlags struct {
	season int
	event  string
	kind   string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.season, "season", 0, "Championship year, e.g. 2024")
	cmd.Flags().StringVar(&f.event, "event", "", "Event name, e.g. \"Monaco Grand Prix\"")
	cmd.Flags().StringVar(&f.kind, "session", "", "Session: FP1, FP2, FP3, SQ, Sprint, Q or R")

	_ = cmd.MarkFlagRequired("season")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("session")
}

func (f *sessionFlags) key() (telemetry.SessionKey, error) {
	kind, err := telemetry.ParseSessionKind(f.kind)
	if err != nil {
		return telemetry.SessionKey{}, err
	}
	return telemetry.NewSessionKey(f.season, f.event, kind)
}

// lapFlags select a lap to compare against the session's fastest lap
type lapFlags struct {
	sessionFlags
	driver   string
	lap      string
	variable string
}

func (f *lapFlags) register(cmd *cobra.Command) {
	f.sessionFlags.register(cmd)

	cmd.Flags().StringVar(&f.driver, "driver", "", "Three letter driver code, e.g. VER")
	cmd.Flags().StringVar(&f.lap, "lap", "fastest", "Lap number, \"fastest\", \"slowest\" or \"session-fastest\"")
	cmd.Flags().StringVar(&f.variable, "variable", frames.Speed.String(), "Variable to color by: "+variableNames())

	_ = cmd.MarkFlagRequired("driver")
}

func (f *lapFlags) compare(cmd *cobra.Command, ctx *commandContext) (*Comparison, error) {
	session, err := f.key()
	if err != nil {
		return nil, err
	}

	selector, err := telemetry.ParseLapSelector(f.lap)
	if err != nil {
		return nil, err
	}

	v, err := frames.ParseVariable(f.variable)
	if err != nil {
		return nil, err
	}

	a, err := ctx.application()
	if err != nil {
		return nil, err
	}

	return a.Compare(cmd.Context(), session, f.driver, selector, v)
}

// NewRootCommand creates the lapviz command line interface. The logger's level is
// controlled through logLevel once the configuration is loaded.
func NewRootCommand(logger *slog.Logger, logLevel *slog.LevelVar) *cobra.Command {
	ctx := &commandContext{logger: logger, logLevel: logLevel}

	rootCmd := &cobra.Command{
		Use:           "lapviz",
		Short:         "Compare F1 laps against the session's fastest lap",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&ctx.dbPath, "db", "", "Telemetry cache database path")
	rootCmd.PersistentFlags().StringVar(&ctx.level, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(newIngestCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newSessionsCommand(ctx))
	rootCmd.AddCommand(newDriversCommand(ctx))
	rootCmd.AddCommand(newLapsCommand(ctx))
	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newTraceCommand(ctx))

	return rootCmd
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch a session from the provider into the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := flags.key()
			if err != nil {
				return err
			}

			a, err := ctx.application()
			if err != nil {
				return err
			}

			entry, err := a.Store().EnsureIngested(cmd.Context(), session)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:  %s\n", entry.Session)
			fmt.Fprintf(out, "Ingested: %s (%s)\n", entry.IngestedAt.Local().Format(time.DateTime), humanize.Time(entry.IngestedAt))
			fmt.Fprintf(out, "Drivers:  %d\n", entry.DriverCount)
			fmt.Fprintf(out, "Laps:     %d\n", entry.LapCount)
			fmt.Fprintf(out, "Samples:  %s\n", humanize.Comma(int64(entry.SampleCount)))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch a session with the command provider and save it to the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := flags.key()
			if err != nil {
				return err
			}

			a, err := ctx.application()
			if err != nil {
				return err
			}

			path, err := a.Export(cmd.Context(), session)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions in the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.application()
			if err != nil {
				return err
			}

			entries, err := a.Store().Sessions(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Sessions: none")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%-50s %3d drivers %5d laps %10s samples  %s\n",
					e.Session, e.DriverCount, e.LapCount, humanize.Comma(int64(e.SampleCount)), humanize.Time(e.IngestedAt))
			}
			return nil
		},
	}
}

func newDriversCommand(ctx *commandContext) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "drivers",
		Short: "List drivers of a cached session",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := flags.key()
			if err != nil {
				return err
			}

			a, err := ctx.application()
			if err != nil {
				return err
			}

			drivers, err := a.Store().Drivers(cmd.Context(), session)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(drivers, " "))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newLapsCommand(ctx *commandContext) *cobra.Command {
	var (
		flags  sessionFlags
		driver string
	)

	cmd := &cobra.Command{
		Use:   "laps",
		Short: "List laps of a driver in a cached session",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := flags.key()
			if err != nil {
				return err
			}

			a, err := ctx.application()
			if err != nil {
				return err
			}

			laps, err := a.Store().Laps(cmd.Context(), session, driver)
			if err != nil {
				return err
			}

			printLaps(cmd.OutOrStdout(), laps)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&driver, "driver", "", "Three letter driver code, e.g. VER")
	_ = cmd.MarkFlagRequired("driver")

	return cmd
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		flags lapFlags
		out   string
		every int
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the lap overlay as PNG frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.compare(cmd, ctx)
			if err != nil {
				return err
			}

			renderer, err := NewFrameRenderer(ctx.config.Render)
			if err != nil {
				return err
			}

			n, err := renderer.WriteFrames(c, out, every)
			if err != nil {
				return err
			}

			ctx.logger.Info("frames written",
				slog.String("dir", out),
				slog.Int("frames", n),
				slog.String("lap", c.Lap.Label()),
				slog.String("reference", c.Reference.Label()))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&out, "out", "frames", "Output directory")
	cmd.Flags().IntVar(&every, "every", 1, "Render every nth frame")

	return cmd
}

func newTraceCommand(ctx *commandContext) *cobra.Command {
	var (
		flags lapFlags
		out   string
	)

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Plot the variable and the time delta against distance",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.compare(cmd, ctx)
			if err != nil {
				return err
			}

			files, err := SaveTrace(c, out)
			if err != nil {
				return err
			}

			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&out, "out", "trace.png", "Output file; the format follows the extension")

	return cmd
}

func printLaps(out io.Writer, laps []telemetry.Lap) {
	for _, l := range laps {
		fmt.Fprintln(out, lapSummary(l))
	}
}

func variableNames() string {
	var names []string
	for _, v := range frames.Variables() {
		names = append(names, v.String())
	}
	return strings.Join(names, ", ")
}
