// Package main provides the command-line interface of skillrank. It rates
// single games, recomputes Elo from a tally and runs round robin and gauntlet
// tournaments over candidates loaded from CSV, with an optional live TUI.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/pashagolub/skillrank/pkg/data"
	"github.com/pashagolub/skillrank/pkg/logger"
)

// Version information - set by build process
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// GlobalOptions defines global CLI flags
type GlobalOptions struct {
	Config  string `long:"config" short:"c" description:"Configuration file path (default: search for skillrank.yaml)"`
	Verbose bool   `long:"verbose" short:"v" description:"Enable verbose logging"`
	Version bool   `long:"version" description:"Show version information"`
}

// ErrorCode represents CLI exit codes
type ErrorCode int

const (
	ExitSuccess ErrorCode = iota
	ExitFileError
	ExitConfigError
	ExitRatingError
	ExitTournamentError
	ExitExportError
	ExitValidationError
)

// CLIError represents a CLI error with exit code
type CLIError struct {
	Code        ErrorCode
	Message     string
	Details     map[string]any
	Suggestions []string
}

func (e *CLIError) Error() string {
	return e.Message
}

// formatErrorJSON formats error as JSON for structured output
func formatErrorJSON(err *CLIError) string {
	body := map[string]any{
		"code":    err.Code,
		"message": err.Message,
	}
	if err.Details != nil {
		body["details"] = err.Details
	}
	if err.Suggestions != nil {
		body["suggestions"] = err.Suggestions
	}

	jsonBytes, _ := json.MarshalIndent(map[string]any{"error": body}, "", "  ")
	return string(jsonBytes)
}

// cliEnv is shared by all commands of one invocation
type cliEnv struct {
	global GlobalOptions
	stdout io.Writer
	stderr io.Writer
	log    logger.Logger
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var cliErr *CLIError
		if errors.As(err, &cliErr) {
			_, _ = fmt.Fprintln(os.Stderr, formatErrorJSON(cliErr))
			os.Exit(int(cliErr.Code))
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newParser(env *cliEnv) *flags.Parser {
	// errors are reported as CLIError, so go-flags must not print them
	parser := flags.NewParser(&env.global, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[OPTIONS] COMMAND [COMMAND-OPTIONS]"

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"elo", "Apply Elo updates to a pair of ratings", "Plays the given outcomes in order and prints the rating after each game.", &EloCommand{env: env}},
		{"rate", "Apply Bayesian updates to a pair of ratings", "Rates a sequence of outcomes with the TrueSkill engine, keeping Elo in lockstep.", &RateCommand{env: env}},
		{"batch", "Recompute Elo ratings from a tally", "Reads ratings, results and game counts from YAML and prints the batch update.", &BatchCommand{env: env}},
		{"tournament", "Run a round robin tournament", "Plays every pair of candidates for a number of rounds and exports the standings.", &TournamentCommand{env: env}},
		{"gauntlet", "Rate candidates against a fixed baseline", "Plays every candidate against the baseline, whose rating does not change.", &GauntletCommand{env: env}},
		{"validate", "Validate a candidates file", "Parses a candidates CSV file and reports problems without running anything.", &ValidateCommand{env: env}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic(err)
		}
	}

	return parser
}

func run(args []string, stdout, stderr io.Writer) error {
	env := &cliEnv{stdout: stdout, stderr: stderr, log: logger.Nop()}
	parser := newParser(env)

	_, err := parser.ParseArgs(args)
	if err == nil {
		return nil
	}

	var flagsErr *flags.Error
	if !errors.As(err, &flagsErr) {
		return err
	}

	switch flagsErr.Type {
	case flags.ErrHelp:
		_, _ = fmt.Fprintln(stdout, flagsErr.Message)
		return nil
	case flags.ErrCommandRequired:
		if env.global.Version {
			return env.showVersion()
		}
		return &CLIError{
			Code:    ExitConfigError,
			Message: "No command specified",
			Suggestions: []string{
				"Use 'skillrank tournament --input candidates.csv' to rank candidates",
				"Use 'skillrank --help' to see all available commands",
			},
		}
	default:
		return &CLIError{
			Code:    ExitConfigError,
			Message: fmt.Sprintf("Invalid arguments: %v", err),
		}
	}
}

// setup loads the configuration and prepares logging for a command
func (e *cliEnv) setup() (*data.Config, error) {
	config, err := data.LoadConfig(e.global.Config)
	if err != nil {
		return nil, &CLIError{
			Code:    ExitConfigError,
			Message: fmt.Sprintf("Failed to load configuration: %v", err),
			Details: map[string]any{"config": e.global.Config},
			Suggestions: []string{
				"Check configuration file syntax",
				"Use --config flag to specify different config file",
				"Run with --verbose for more details",
			},
		}
	}

	level := config.Log.Level
	if e.global.Verbose {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		return nil, &CLIError{
			Code:    ExitConfigError,
			Message: fmt.Sprintf("Invalid log level: %v", err),
		}
	}
	if e.global.Verbose {
		e.log = logger.NewWithSource(e.stderr)
	} else {
		e.log = logger.New(e.stderr)
	}

	return config, nil
}

// checkInput reports a missing input file the same way for every command
func checkInput(path, hint string) error {
	if _, err := os.Stat(path); err != nil {
		return &CLIError{
			Code:    ExitFileError,
			Message: fmt.Sprintf("Input file not found: %s", path),
			Details: map[string]any{"file": path},
			Suggestions: []string{
				"Check file path and name",
				hint,
			},
		}
	}
	return nil
}

func (e *cliEnv) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.stdout, format, args...)
}

func (e *cliEnv) showVersion() error {
	e.printf("skillrank version %s\n", Version)
	e.printf("Build date: %s\n", BuildDate)
	e.printf("Git commit: %s\n", GitCommit)
	return nil
}
