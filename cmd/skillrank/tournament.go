package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pashagolub/skillrank/pkg/data"
	"github.com/pashagolub/skillrank/pkg/journal"
	"github.com/pashagolub/skillrank/pkg/logger"
	"github.com/pashagolub/skillrank/pkg/metrics"
	"github.com/pashagolub/skillrank/pkg/skill"
	"github.com/pashagolub/skillrank/pkg/tournament"
	"github.com/pashagolub/skillrank/pkg/tui"
)

// Oracle names accepted by --oracle
const (
	OracleSum  = "sum"
	OracleMean = "mean"
)

// recentMatches is the number of matches listed in text reports
const recentMatches = 10

// RunOptions are shared by the tournament and gauntlet commands
type RunOptions struct {
	Input       string  `long:"input" short:"i" description:"Path to CSV file containing candidates" required:"true"`
	Matches     int     `long:"matches" short:"m" description:"Trials per pairing (overrides config)"`
	Oracle      string  `long:"oracle" description:"Oracle scoring a snippet" choice:"sum" choice:"mean" default:"sum"`
	Seed        *uint64 `long:"seed" description:"Seed of the snippet sampler (overrides config)"`
	Output      string  `long:"output" short:"o" description:"Output file path (default: stdout)"`
	Format      string  `long:"format" description:"Export format (csv/json/yaml/text, overrides config)"`
	JournalDir  string  `long:"journal-dir" description:"Directory of the audit journal (overrides config)"`
	MetricsAddr string  `long:"metrics-addr" description:"Serve Prometheus metrics on this address"`
	TUI         bool    `long:"tui" description:"Show live progress in a terminal UI"`
}

func (o RunOptions) apply(config *data.Config) error {
	if o.Matches != 0 {
		config.Tournament.MatchesPerRound = o.Matches
	}
	if o.Seed != nil {
		config.Tournament.Seed = *o.Seed
	}
	if o.Format != "" {
		config.Export.Format = o.Format
	}
	if o.JournalDir != "" {
		config.Journal.Directory = o.JournalDir
	}
	if o.MetricsAddr != "" {
		config.Metrics.Enabled = true
		config.Metrics.Addr = o.MetricsAddr
	}

	if err := config.Validate(); err != nil {
		return &CLIError{
			Code:    ExitConfigError,
			Message: fmt.Sprintf("Invalid configuration: %v", err),
			Suggestions: []string{
				"Check command-line overrides against the configuration file",
				"Run with --verbose for more details",
			},
		}
	}
	return nil
}

// TournamentCommand handles 'skillrank tournament' subcommand
type TournamentCommand struct {
	Rounds int `long:"rounds" short:"r" description:"Number of passes over every pair (overrides config)"`
	RunOptions

	env *cliEnv
}

// Execute implements the Command interface for TournamentCommand
func (c *TournamentCommand) Execute([]string) error {
	if c.env.global.Version {
		return c.env.showVersion()
	}

	r, err := newRunner(c.env, c.RunOptions, func(config *data.Config) {
		if c.Rounds != 0 {
			config.Tournament.Rounds = c.Rounds
		}
	})
	if err != nil {
		return err
	}
	defer r.close()

	rounds := r.config.Tournament.Rounds
	matches := r.config.Tournament.MatchesPerRound

	return r.execute(tournament.KindRoundRobin, func(ctx context.Context) ([]tournament.Player[float64], error) {
		t, err := r.newTournament(0)
		if err != nil {
			return r.players, err
		}
		return t.RoundRobin(ctx, r.players, rounds, matches)
	})
}

// GauntletCommand handles 'skillrank gauntlet' subcommand
type GauntletCommand struct {
	Baseline string `long:"baseline" short:"b" description:"ID of the candidate every other candidate plays against" required:"true"`
	Workers  int    `long:"workers" short:"w" description:"Gauntlets played concurrently" default:"4"`
	RunOptions

	env *cliEnv
}

// Execute implements the Command interface for GauntletCommand
func (c *GauntletCommand) Execute([]string) error {
	if c.env.global.Version {
		return c.env.showVersion()
	}
	if c.Workers <= 0 {
		return &CLIError{
			Code:    ExitConfigError,
			Message: fmt.Sprintf("Invalid number of workers: %d", c.Workers),
		}
	}

	r, err := newRunner(c.env, c.RunOptions, nil)
	if err != nil {
		return err
	}
	defer r.close()

	baseline, challengers, err := data.SplitBaseline(r.players, c.Baseline)
	if err != nil {
		return &CLIError{
			Code:        ExitValidationError,
			Message:     fmt.Sprintf("Baseline not found: %v", err),
			Details:     map[string]any{"baseline": c.Baseline, "file": c.Input},
			Suggestions: []string{"Use 'skillrank validate --input " + c.Input + "' to list candidate IDs"},
		}
	}
	if len(challengers) == 0 {
		return &CLIError{
			Code:    ExitValidationError,
			Message: "No candidates to play against the baseline",
			Details: map[string]any{"file": c.Input},
		}
	}

	matches := r.config.Tournament.MatchesPerRound

	return r.execute(tournament.KindGauntlet, func(ctx context.Context) ([]tournament.Player[float64], error) {
		results := make([]tournament.Player[float64], len(challengers))
		copy(results, challengers)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.Workers)
		for i, challenger := range challengers {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				// every gauntlet gets its own sampler, seeded by position
				t, err := r.newTournament(uint64(i))
				if err != nil {
					return err
				}
				rated, err := t.Gauntlet(gctx, challenger, baseline, matches)
				if err != nil {
					var failure tournament.MatchError
					if errors.As(err, &failure) && tournament.SkipRecoverable(failure) == nil {
						return nil
					}
					return err
				}
				results[i] = rated
				return nil
			})
		}
		err := g.Wait()

		players := append(results, baseline)
		if r.ui != nil {
			r.ui.ShowResults(tournament.Standings(players))
		}
		return players, err
	})
}

// runner holds everything a tournament command wires together
type runner struct {
	env      *cliEnv
	opts     RunOptions
	config   *data.Config
	runID    string
	kind     string
	log      logger.Logger
	format   journal.ExportFormat
	engine   *skill.Engine
	oracle   tournament.Oracle[float64]
	players  []tournament.Player[float64]
	metrics  *metrics.Manager
	server   *http.Server
	audit    *journal.AuditTrail
	recorder *matchRecorder
	ui       *tui.App
	exporter *journal.Exporter
}

func newRunner(env *cliEnv, opts RunOptions, override func(*data.Config)) (*runner, error) {
	config, err := env.setup()
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(config)
	}
	if err := opts.apply(config); err != nil {
		return nil, err
	}
	if err := checkInput(opts.Input, "Validate the file with 'skillrank validate --input "+opts.Input+"'"); err != nil {
		return nil, err
	}
	if err := data.ValidateOutputPath(opts.Output); err != nil {
		return nil, &CLIError{Code: ExitExportError, Message: err.Error(), Details: map[string]any{"output": opts.Output}}
	}
	format, err := journal.ParseExportFormat(config.Export.Format)
	if err != nil {
		return nil, &CLIError{
			Code:        ExitConfigError,
			Message:     err.Error(),
			Suggestions: []string{"Use --format csv, json, yaml or text"},
		}
	}

	r := &runner{
		env:      env,
		opts:     opts,
		config:   config,
		runID:    uuid.NewString(),
		format:   format,
		recorder: &matchRecorder{},
		exporter: journal.NewExporter(),
	}
	r.log = env.log.Named("run")
	ctx := context.Background()

	parsed, err := data.LoadCandidatesFromCSV(opts.Input)
	if err != nil {
		return nil, &CLIError{
			Code:    ExitFileError,
			Message: fmt.Sprintf("Failed to load CSV file: %v", err),
			Details: map[string]any{"file": opts.Input},
			Suggestions: []string{
				"Validate CSV format with 'skillrank validate --input " + opts.Input + "'",
			},
		}
	}
	for _, perr := range parsed.ParseErrors {
		r.log.Warn(ctx, "row skipped", logger.Int("row", perr.RowNumber), logger.String("reason", perr.Message))
	}

	if config.Metrics.Enabled {
		r.metrics = metrics.Default()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
		r.server = &http.Server{
			Addr:              config.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	var engineOpts []skill.Option
	if r.metrics != nil {
		engineOpts = append(engineOpts, skill.WithClampObserver(r.metrics))
	}
	if r.engine, err = env.newEngine(config, engineOpts...); err != nil {
		return nil, err
	}

	r.players, err = data.Players(parsed.Candidates, r.engine)
	if err != nil {
		return nil, &CLIError{
			Code:    ExitValidationError,
			Message: fmt.Sprintf("No usable candidates: %v", err),
			Details: map[string]any{"file": opts.Input, "parse_errors": len(parsed.ParseErrors)},
		}
	}

	r.oracle = tournament.SumOracle[float64]()
	if opts.Oracle == OracleMean {
		r.oracle = tournament.MeanOracle[float64]()
	}
	if r.metrics != nil {
		r.oracle = metrics.TimedOracle(r.metrics, r.oracle)
	}

	if dir := config.Journal.Directory; dir != "" {
		if r.audit, err = journal.NewAuditTrail(r.runID, dir); err != nil {
			return nil, &CLIError{
				Code:    ExitFileError,
				Message: fmt.Sprintf("Failed to open audit journal: %v", err),
				Details: map[string]any{"directory": dir},
			}
		}
	}

	if opts.TUI {
		r.ui, err = tui.NewApp(
			tui.WithTitle("skillrank - "+filepath.Base(opts.Input)),
			tui.WithExporter(r.exportStandings),
		)
		if err != nil {
			r.close()
			return nil, &CLIError{Code: ExitConfigError, Message: fmt.Sprintf("Failed to start terminal UI: %v", err)}
		}
	}

	r.log.Info(ctx, "run prepared",
		logger.String("run", r.runID),
		logger.Int("candidates", len(r.players)),
		logger.String("oracle", opts.Oracle),
		logger.Int("matches", config.Tournament.MatchesPerRound))

	return r, nil
}

// newTournament builds a tournament with its own simulator. The configured
// seed is shifted by offset.
func (r *runner) newTournament(offset uint64) (*tournament.Tournament[float64], error) {
	simConfig := r.config.SimulatorConfig()
	simConfig.Seed += offset
	sim, err := tournament.NewSimulator[float64](simConfig)
	if err != nil {
		return nil, err
	}

	opts := []tournament.Option[float64]{
		tournament.WithLogger[float64](r.env.log.Named("tournament")),
		tournament.WithObserver[float64](r.recorder),
	}
	if r.metrics != nil {
		opts = append(opts, tournament.WithObserver[float64](r.metrics))
	}
	if r.audit != nil {
		opts = append(opts, tournament.WithObserver[float64](r.audit))
	}
	if r.ui != nil {
		opts = append(opts, tournament.WithObserver[float64](r.ui))
	}
	return tournament.NewTournament(r.engine, sim, r.oracle, opts...)
}

// execute plays the tournament, serving metrics and the terminal UI while it
// runs, and exports whatever standings it produced
func (r *runner) execute(kind string, play func(context.Context) ([]tournament.Player[float64], error)) error {
	r.kind = kind
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.ui != nil {
		stopUI := context.AfterFunc(r.ui.Context(), cancel)
		defer stopUI()
	}

	var g errgroup.Group
	if r.server != nil {
		g.Go(func() error {
			r.log.Info(ctx, "serving metrics", logger.String("addr", r.server.Addr))
			if err := r.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	var (
		players []tournament.Player[float64]
		playErr error
	)
	started := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		players, playErr = play(ctx)
	}()

	if r.ui != nil {
		if err := r.ui.Run(); err != nil {
			r.log.Error(ctx, "terminal UI failed", logger.Error(err))
		}
		// leaving the UI ends the run
		cancel()
	}
	<-done

	if r.server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		_ = r.server.Shutdown(shutdownCtx)
		cancelShutdown()
	}
	if err := g.Wait(); err != nil {
		r.log.Error(ctx, "metrics endpoint unavailable", logger.Error(err))
	}

	summary := r.recorder.summary(r.runID, kind, players, time.Since(started), playErr)
	if len(summary.Standings) > 0 {
		if err := r.export(summary); err != nil {
			return err
		}
	}

	switch {
	case playErr == nil:
		return nil
	case errors.Is(playErr, context.Canceled):
		r.log.Warn(ctx, "run interrupted, standings are partial",
			logger.Int("completed", summary.Completed),
			logger.Int("skipped", summary.Skipped))
		return nil
	default:
		return &CLIError{
			Code:    ExitTournamentError,
			Message: fmt.Sprintf("Tournament aborted: %v", playErr),
			Details: map[string]any{
				"run":       r.runID,
				"completed": summary.Completed,
				"skipped":   summary.Skipped,
			},
			Suggestions: []string{
				"Partial standings were exported",
				"Run with --verbose to see every match",
			},
		}
	}
}

func (r *runner) exportOptions() journal.ExportOptions {
	return journal.ExportOptions{
		Format:        r.format,
		IncludeStats:  r.config.Export.IncludeStats,
		IncludeAudit:  r.config.Export.IncludeAudit,
		RecentMatches: recentMatches,
	}
}

func (r *runner) report(summary tournament.TournamentSummary) *journal.Report {
	return journal.NewReport(filepath.Base(r.opts.Input), summary, r.recorder.Matches())
}

// export writes the final report to the output file or stdout
func (r *runner) export(summary tournament.TournamentSummary) error {
	report := r.report(summary)

	var err error
	if r.opts.Output == "" {
		err = r.exporter.Export(report, r.env.stdout, r.exportOptions())
	} else {
		err = r.exporter.ExportToFile(report, r.opts.Output, r.exportOptions())
	}
	if err != nil {
		return &CLIError{
			Code:    ExitExportError,
			Message: fmt.Sprintf("Failed to export standings: %v", err),
			Details: map[string]any{"output": r.opts.Output, "format": r.format},
		}
	}

	if r.opts.Output != "" {
		r.env.printf("Standings written to %s\n", r.opts.Output)
	}
	return nil
}

// exportStandings is the terminal UI exporter. Without --output the file is
// named after the run.
func (r *runner) exportStandings(standings []tournament.Standing) (string, error) {
	path := r.opts.Output
	if path == "" {
		ext := string(r.format)
		if r.format == journal.FormatText {
			ext = "txt"
		}
		path = fmt.Sprintf("standings-%s.%s", r.runID[:8], ext)
	}

	summary := r.recorder.summary(r.runID, r.kind, nil, 0, nil)
	summary.Standings = standings
	if err := r.exporter.ExportToFile(r.report(summary), path, r.exportOptions()); err != nil {
		return "", err
	}
	return path, nil
}

func (r *runner) close() {
	if r.ui != nil {
		r.ui.Stop()
	}
	if r.audit == nil {
		return
	}
	ctx := context.Background()
	if err := r.audit.Err(); err != nil {
		r.log.Error(ctx, "audit journal is incomplete", logger.Error(err))
	}
	if err := r.audit.Close(); err != nil {
		r.log.Error(ctx, "failed to close audit journal", logger.Error(err))
		return
	}
	r.log.Info(ctx, "audit journal written", logger.String("path", r.audit.GetLogPath()))
}

// matchRecorder collects the rated matches and summaries of a run
type matchRecorder struct {
	tournament.NopObserver

	mu        sync.Mutex
	matches   []tournament.MatchRecord
	summaries []tournament.TournamentSummary
}

func (m *matchRecorder) MatchCompleted(_ context.Context, rec tournament.MatchRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches = append(m.matches, rec)
}

func (m *matchRecorder) TournamentCompleted(_ context.Context, summary tournament.TournamentSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, summary)
}

// Matches returns the rated matches in the order they completed
func (m *matchRecorder) Matches() []tournament.MatchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tournament.MatchRecord, len(m.matches))
	copy(out, m.matches)
	return out
}

// summary folds every tournament of the run into one. A single tournament
// keeps its own ID and kind.
func (m *matchRecorder) summary(runID, kind string, players []tournament.Player[float64], d time.Duration, err error) tournament.TournamentSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := tournament.TournamentSummary{ID: runID, Kind: kind, Duration: d, Err: err}
	if len(m.summaries) == 1 {
		out.ID = m.summaries[0].ID
		out.Kind = m.summaries[0].Kind
	}
	for _, s := range m.summaries {
		out.Completed += s.Completed
		out.Skipped += s.Skipped
	}
	if players != nil {
		out.Standings = tournament.Standings(players)
	}
	return out
}
