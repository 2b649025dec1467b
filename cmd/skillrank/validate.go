package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pashagolub/skillrank/pkg/data"
)

// ValidateCommand handles 'skillrank validate' subcommand
type ValidateCommand struct {
	Input   string `long:"input" short:"i" description:"Path to CSV file to validate" required:"true"`
	Preview int    `long:"preview" description:"Number of candidates to preview" default:"5"`

	env *cliEnv
}

// Execute implements the Command interface for ValidateCommand
func (c *ValidateCommand) Execute([]string) error {
	env := c.env
	if env.global.Version {
		return env.showVersion()
	}

	if err := checkInput(c.Input, "Use absolute path if needed"); err != nil {
		return err
	}

	config, err := env.setup()
	if err != nil {
		return err
	}
	minLength := config.Tournament.MinSnippetLength

	parseResult, err := data.LoadCandidatesFromCSV(c.Input)

	env.printf("Validation Results for: %s\n", c.Input)
	env.printf("===========================================\n\n")

	if err == nil && len(parseResult.Candidates) == 0 {
		err = data.ErrNoCandidates
	}
	if err != nil {
		env.printf("❌ INVALID: %v\n\n", err)
		return &CLIError{
			Code:    ExitValidationError,
			Message: fmt.Sprintf("CSV validation failed: %v", err),
			Details: map[string]any{"file": c.Input},
			Suggestions: []string{
				"Every row needs an ID followed by numeric values",
				"IDs must be unique",
				"Check CSV format and encoding",
			},
		}
	}

	env.printf("✅ VALID CSV file\n\n")

	lengths := make([]int, len(parseResult.Candidates))
	for i, cand := range parseResult.Candidates {
		lengths[i] = len(cand.Values)
	}

	env.printf("File Statistics:\n")
	env.printf("  Rows: %d total, %d candidates\n", parseResult.TotalRows, parseResult.SuccessfulRows)
	env.printf("  Values per candidate: %d - %d\n", slices.Min(lengths), slices.Max(lengths))
	if len(parseResult.Header) > 0 {
		env.printf("  Header: %s\n", strings.Join(parseResult.Header, ", "))
	}

	if len(parseResult.ParseErrors) > 0 {
		env.printf("\nParse Errors:\n")
		for _, parseErr := range parseResult.ParseErrors {
			env.printf("  ⚠️  Row %d: %s\n", parseErr.RowNumber, parseErr.Message)
		}
	}

	var short []string
	for _, cand := range parseResult.Candidates {
		if len(cand.Values) < minLength {
			short = append(short, fmt.Sprintf("%s (%d values)", cand.ID, len(cand.Values)))
		}
	}
	if len(short) > 0 {
		env.printf("\nToo short for matches (minimum snippet length %d):\n", minLength)
		for _, s := range short {
			env.printf("  ⚠️  %s\n", s)
		}
	}

	if c.Preview > 0 {
		env.printf("\nData Preview (%d candidates):\n", min(c.Preview, len(parseResult.Candidates)))
		for i, cand := range parseResult.Candidates {
			if i >= c.Preview {
				break
			}
			env.printf("  [%d] %s - %s\n", i+1, cand.ID, previewValues(cand.Values, 5))
		}
	}

	return nil
}

// previewValues formats the first n values of a candidate
func previewValues(values []float64, n int) string {
	parts := make([]string, 0, n+1)
	for _, v := range values[:min(n, len(values))] {
		parts = append(parts, fmt.Sprintf("%g", v))
	}
	if len(values) > n {
		parts = append(parts, fmt.Sprintf("... (%d values)", len(values)))
	}
	return strings.Join(parts, ", ")
}
