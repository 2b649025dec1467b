package main

import (
	"context"
	"fmt"

	"github.com/pashagolub/skillrank/pkg/data"
	"github.com/pashagolub/skillrank/pkg/elo"
	"github.com/pashagolub/skillrank/pkg/logger"
	"github.com/pashagolub/skillrank/pkg/skill"
)

// EloOptions overrides the Elo section of the configuration
type EloOptions struct {
	KFactor int `long:"k-factor" description:"Maximum rating change per game (overrides config)"`
	Beta    int `long:"beta" description:"Logistic spread (overrides config)"`
}

func (o EloOptions) apply(config *data.Config) error {
	if o.KFactor != 0 {
		config.Elo.KFactor = o.KFactor
	}
	if o.Beta != 0 {
		config.Elo.Beta = o.Beta
	}
	if err := config.Elo.Validate(); err != nil {
		return &CLIError{
			Code:    ExitConfigError,
			Message: fmt.Sprintf("Invalid Elo parameters: %v", err),
			Details: map[string]any{"k_factor": config.Elo.KFactor, "beta": config.Elo.Beta},
		}
	}
	return nil
}

// EloCommand handles 'skillrank elo' subcommand
type EloCommand struct {
	A        int      `long:"a" description:"Elo rating of player A" default:"1200"`
	B        int      `long:"b" description:"Elo rating of player B" default:"1200"`
	Outcomes []string `long:"outcome" short:"o" description:"Outcome for player A (win, draw or loss); repeat for several games" required:"true"`
	EloOptions

	env *cliEnv
}

// Execute implements the Command interface for EloCommand
func (c *EloCommand) Execute([]string) error {
	env := c.env
	if env.global.Version {
		return env.showVersion()
	}

	config, err := env.setup()
	if err != nil {
		return err
	}
	if err := c.apply(config); err != nil {
		return err
	}

	calc, err := elo.NewCalculator(config.CalculatorConfig())
	if err != nil {
		return &CLIError{Code: ExitConfigError, Message: err.Error()}
	}

	outcomes, err := elo.ParseOutcomes(c.Outcomes)
	if err != nil {
		return &CLIError{
			Code:        ExitRatingError,
			Message:     fmt.Sprintf("Invalid outcome: %v", err),
			Suggestions: []string{"Use --outcome win, --outcome draw or --outcome loss"},
		}
	}

	a, b := c.A, c.B
	for i, o := range outcomes {
		expected := calc.ExpectedScore(a, b)
		newA, newB, err := calc.Pairwise(a, b, o)
		if err != nil {
			return &CLIError{Code: ExitRatingError, Message: err.Error()}
		}
		env.printf("Game %d: %-4s  %d vs %d -> %d vs %d (expected %.3f)\n", i+1, o, a, b, newA, newB, expected)
		a, b = newA, newB
	}
	env.printf("Final: A=%d B=%d\n", a, b)

	return nil
}

// RateCommand handles 'skillrank rate' subcommand
type RateCommand struct {
	AMu      *float64 `long:"a-mu" description:"Belief mean of player A (default: configured mu)"`
	ASigma   *float64 `long:"a-sigma" description:"Belief deviation of player A (default: configured sigma)"`
	AElo     *int     `long:"a-elo" description:"Elo score of player A (default: configured initial rating)"`
	BMu      *float64 `long:"b-mu" description:"Belief mean of player B"`
	BSigma   *float64 `long:"b-sigma" description:"Belief deviation of player B"`
	BElo     *int     `long:"b-elo" description:"Elo score of player B"`
	Outcomes []string `long:"outcome" short:"o" description:"Outcome for player A (win, draw or loss); repeat for several games" required:"true"`
	Fixed    bool     `long:"fixed" description:"Treat player B as a fixed baseline that is not updated"`
	EloOptions

	env *cliEnv
}

func ratingOptions(mu, sigma *float64, eloScore *int) []skill.RatingOption {
	var opts []skill.RatingOption
	if mu != nil {
		opts = append(opts, skill.WithMu(*mu))
	}
	if sigma != nil {
		opts = append(opts, skill.WithSigma(*sigma))
	}
	if eloScore != nil {
		opts = append(opts, skill.WithElo(*eloScore))
	}
	return opts
}

// Execute implements the Command interface for RateCommand
func (c *RateCommand) Execute([]string) error {
	env := c.env
	if env.global.Version {
		return env.showVersion()
	}

	config, err := env.setup()
	if err != nil {
		return err
	}
	if err := c.apply(config); err != nil {
		return err
	}

	engine, err := env.newEngine(config)
	if err != nil {
		return err
	}

	a, err := engine.CreateRating(ratingOptions(c.AMu, c.ASigma, c.AElo)...)
	if err != nil {
		return &CLIError{Code: ExitRatingError, Message: fmt.Sprintf("Invalid rating for player A: %v", err)}
	}
	b, err := engine.CreateRating(ratingOptions(c.BMu, c.BSigma, c.BElo)...)
	if err != nil {
		return &CLIError{Code: ExitRatingError, Message: fmt.Sprintf("Invalid rating for player B: %v", err)}
	}

	env.printf("Before:\n  A: %s\n  B: %s\n", a, b)
	env.printf("Match quality: %.3f\n", engine.Quality(a, b))

	if c.Fixed {
		a, err = engine.RateOneVsManyTokens(a, b, c.Outcomes)
		if err != nil {
			return &CLIError{Code: ExitRatingError, Message: fmt.Sprintf("Rating failed: %v", err)}
		}
	} else {
		a, b, err = engine.RateOneVsOneTokens(a, b, c.Outcomes)
		if err != nil {
			return &CLIError{Code: ExitRatingError, Message: fmt.Sprintf("Rating failed: %v", err)}
		}
	}

	env.printf("After:\n  A: %s\n  B: %s\n", a, b)
	return nil
}

// newEngine builds a rating engine whose Elo track follows the configured calculator
func (e *cliEnv) newEngine(config *data.Config, opts ...skill.Option) (*skill.Engine, error) {
	calc, err := elo.NewCalculator(config.CalculatorConfig())
	if err != nil {
		return nil, &CLIError{Code: ExitConfigError, Message: fmt.Sprintf("Invalid Elo parameters: %v", err)}
	}

	base := []skill.Option{
		skill.WithCalculator(calc),
		skill.WithLogger(e.log.Named("skill")),
	}
	engine, err := skill.NewEngine(config.EngineConfig(), append(base, opts...)...)
	if err != nil {
		return nil, &CLIError{
			Code:        ExitConfigError,
			Message:     fmt.Sprintf("Invalid skill parameters: %v", err),
			Suggestions: []string{"Check the skill section of the configuration file"},
		}
	}
	return engine, nil
}

// BatchCommand handles 'skillrank batch' subcommand
type BatchCommand struct {
	Input  string `long:"input" short:"i" description:"Path to YAML tally with ratings, result and game_count" required:"true"`
	Output string `long:"output" short:"o" description:"Write the tally with updated ratings to this file"`
	EloOptions

	env *cliEnv
}

// Execute implements the Command interface for BatchCommand
func (c *BatchCommand) Execute([]string) error {
	env := c.env
	if env.global.Version {
		return env.showVersion()
	}

	config, err := env.setup()
	if err != nil {
		return err
	}
	if err := c.apply(config); err != nil {
		return err
	}
	if err := checkInput(c.Input, "A tally needs ratings, result and game_count keys"); err != nil {
		return err
	}
	if err := data.ValidateOutputPath(c.Output); err != nil {
		return &CLIError{Code: ExitExportError, Message: err.Error(), Details: map[string]any{"output": c.Output}}
	}

	calc, err := elo.NewCalculator(config.CalculatorConfig())
	if err != nil {
		return &CLIError{Code: ExitConfigError, Message: err.Error()}
	}

	tally, err := data.LoadTally(c.Input)
	if err != nil {
		return &CLIError{
			Code:    ExitValidationError,
			Message: fmt.Sprintf("Failed to load tally: %v", err),
			Details: map[string]any{"file": c.Input},
			Suggestions: []string{
				"result and game_count must be square matrices of the same size as ratings",
			},
		}
	}

	updated, err := calc.Batch(tally.Ratings, tally.Result, tally.GameCount)
	if err != nil {
		return &CLIError{Code: ExitRatingError, Message: fmt.Sprintf("Batch update failed: %v", err)}
	}
	env.log.Debug(context.Background(), "batch update computed", logger.Int("players", len(updated)))

	env.printf("%-8s %10s %8s %8s\n", "Player", "Before", "After", "Change")
	for i, r := range updated {
		env.printf("%-8d %10.1f %8d %+8.1f\n", i, tally.Ratings[i], r, float64(r)-tally.Ratings[i])
	}

	if c.Output == "" {
		return nil
	}

	out := data.Tally{
		Ratings:   make([]float64, len(updated)),
		Result:    tally.Result,
		GameCount: tally.GameCount,
	}
	for i, r := range updated {
		out.Ratings[i] = float64(r)
	}
	if err := out.SaveToFile(c.Output); err != nil {
		return &CLIError{Code: ExitExportError, Message: fmt.Sprintf("Failed to save tally: %v", err)}
	}
	env.printf("Updated tally written to %s\n", c.Output)

	return nil
}
