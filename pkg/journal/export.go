package journal

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pashagolub/skillrank/pkg/tournament"
)

// ExportFormat represents the format for exporting results
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatYAML ExportFormat = "yaml"
	FormatText ExportFormat = "text"
)

// ParseExportFormat maps a configuration value to an ExportFormat
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatYAML, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format: %q", s)
	}
}

// ExportOptions configures export behavior
type ExportOptions struct {
	Format        ExportFormat `json:"format" yaml:"format"`
	IncludeStats  bool         `json:"include_stats" yaml:"include_stats"`   // Include summary and confidence
	IncludeAudit  bool         `json:"include_audit" yaml:"include_audit"`   // Include match history
	RecentMatches int          `json:"recent_matches" yaml:"recent_matches"` // Matches listed in text reports
}

// ExportTemplate defines custom export formatting
type ExportTemplate struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	HeaderFormat string `json:"header"`
	RowFormat    string `json:"row"`
	FooterFormat string `json:"footer"`
}

// Report is everything known about a finished tournament.
type Report struct {
	Name    string
	Summary tournament.TournamentSummary
	Matches []tournament.MatchRecord
}

// NewReport builds a Report from a tournament summary
func NewReport(name string, summary tournament.TournamentSummary, matches []tournament.MatchRecord) *Report {
	return &Report{Name: name, Summary: summary, Matches: matches}
}

// RankingExport represents the complete export data structure
type RankingExport struct {
	TournamentID string                   `json:"tournament_id" yaml:"tournament_id"`
	Name         string                   `json:"name" yaml:"name"`
	Kind         string                   `json:"kind" yaml:"kind"`
	ExportedAt   time.Time                `json:"exported_at" yaml:"exported_at"`
	Rankings     []RankedPlayer           `json:"rankings" yaml:"rankings"`
	Statistics   *ExportStatistics        `json:"statistics,omitempty" yaml:"statistics,omitempty"`
	Matches      []tournament.MatchRecord `json:"matches,omitempty" yaml:"matches,omitempty"`
}

// RankedPlayer represents a player with ranking information
type RankedPlayer struct {
	Rank     int     `json:"rank" yaml:"rank"`
	ID       string  `json:"id" yaml:"id"`
	Mu       float64 `json:"mu" yaml:"mu"`
	Sigma    float64 `json:"sigma" yaml:"sigma"`
	Exposure float64 `json:"exposure" yaml:"exposure"`
	Elo      int     `json:"elo" yaml:"elo"`
	// Probability that this player is stronger than the next one down
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// ExportStatistics provides summary statistics
type ExportStatistics struct {
	TotalPlayers      int     `json:"total_players" yaml:"total_players"`
	CompletedMatches  int     `json:"completed_matches" yaml:"completed_matches"`
	SkippedMatches    int     `json:"skipped_matches" yaml:"skipped_matches"`
	AverageMu         float64 `json:"average_mu" yaml:"average_mu"`
	AverageSigma      float64 `json:"average_sigma" yaml:"average_sigma"`
	ExposureRange     float64 `json:"exposure_range" yaml:"exposure_range"`
	StandardDeviation float64 `json:"standard_deviation" yaml:"standard_deviation"`
	EloRange          int     `json:"elo_range" yaml:"elo_range"`
	Duration          string  `json:"duration" yaml:"duration"`
}

// Exporter handles ranking export operations
type Exporter struct{}

// NewExporter creates a new exporter instance
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export writes the report to writer in the requested format
func (e *Exporter) Export(report *Report, writer io.Writer, options ExportOptions) error {
	switch options.Format {
	case FormatCSV:
		return e.ExportCSV(report, writer, options)
	case FormatJSON:
		return e.ExportJSON(report, writer, options)
	case FormatYAML:
		return e.ExportYAML(report, writer, options)
	case FormatText:
		return e.ExportRankingReport(report, writer, options)
	default:
		return fmt.Errorf("unsupported export format: %s", options.Format)
	}
}

// ExportToFile exports a report to a file, replacing it atomically
func (e *Exporter) ExportToFile(report *Report, filePath string, options ExportOptions) (err error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tempFile := filePath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(tempFile)
		}
	}()

	if err = e.Export(report, file, options); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err = os.Rename(tempFile, filePath); err != nil {
		return fmt.Errorf("failed to replace target file: %w", err)
	}

	return nil
}

// ExportCSV exports rankings in CSV format
func (e *Exporter) ExportCSV(report *Report, writer io.Writer, options ExportOptions) error {
	rankings := e.buildRankedPlayers(report, options.IncludeStats)
	if len(rankings) == 0 {
		return fmt.Errorf("no players to export")
	}

	csvWriter := csv.NewWriter(writer)

	headers := []string{"rank", "id", "mu", "sigma", "exposure", "elo"}
	if options.IncludeStats {
		headers = append(headers, "confidence")
	}
	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, p := range rankings {
		record := []string{
			strconv.Itoa(p.Rank),
			p.ID,
			formatFloat(p.Mu),
			formatFloat(p.Sigma),
			formatFloat(p.Exposure),
			strconv.Itoa(p.Elo),
		}
		if options.IncludeStats {
			confidence := ""
			if p.Confidence != nil {
				confidence = formatFloat(*p.Confidence)
			}
			record = append(record, confidence)
		}

		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record for player %s: %w", p.ID, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ExportJSON exports rankings in JSON format
func (e *Exporter) ExportJSON(report *Report, writer io.Writer, options ExportOptions) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(e.buildExport(report, options)); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportYAML exports rankings in YAML format
func (e *Exporter) ExportYAML(report *Report, writer io.Writer, options ExportOptions) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(e.buildExport(report, options)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

func (e *Exporter) buildExport(report *Report, options ExportOptions) *RankingExport {
	export := &RankingExport{
		TournamentID: report.Summary.ID,
		Name:         report.Name,
		Kind:         report.Summary.Kind,
		ExportedAt:   time.Now().UTC(),
		Rankings:     e.buildRankedPlayers(report, options.IncludeStats),
	}
	if options.IncludeStats {
		export.Statistics = e.calculateExportStatistics(report)
	}
	if options.IncludeAudit {
		export.Matches = report.Matches
	}
	return export
}

// ExportRankingReport generates a human-readable text report
func (e *Exporter) ExportRankingReport(report *Report, writer io.Writer, options ExportOptions) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Tournament Ranking Report\n")
	fmt.Fprintf(&b, "=========================\n\n")
	if report.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", report.Name)
	}
	fmt.Fprintf(&b, "Tournament ID: %s\n", report.Summary.ID)
	fmt.Fprintf(&b, "Kind: %s\n", report.Summary.Kind)
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	if report.Summary.Err != nil {
		fmt.Fprintf(&b, "Status: aborted (%v)\n", report.Summary.Err)
	} else {
		fmt.Fprintf(&b, "Status: completed\n")
	}
	fmt.Fprintf(&b, "\n")

	if statistics := e.calculateExportStatistics(report); statistics != nil {
		fmt.Fprintf(&b, "Statistics\n")
		fmt.Fprintf(&b, "----------\n")
		fmt.Fprintf(&b, "Players: %d\n", statistics.TotalPlayers)
		fmt.Fprintf(&b, "Matches: %d completed, %d skipped\n", statistics.CompletedMatches, statistics.SkippedMatches)
		fmt.Fprintf(&b, "Average Mu: %.2f\n", statistics.AverageMu)
		fmt.Fprintf(&b, "Average Sigma: %.2f\n", statistics.AverageSigma)
		fmt.Fprintf(&b, "Exposure Range: %.2f\n", statistics.ExposureRange)
		fmt.Fprintf(&b, "Elo Range: %d\n", statistics.EloRange)
		fmt.Fprintf(&b, "Duration: %s\n\n", statistics.Duration)
	}

	fmt.Fprintf(&b, "Final Rankings\n")
	fmt.Fprintf(&b, "==============\n\n")
	for _, p := range e.buildRankedPlayers(report, true) {
		fmt.Fprintf(&b, "%d. %s\n", p.Rank, p.ID)
		fmt.Fprintf(&b, "   Exposure: %.2f | Mu: %.2f | Sigma: %.2f | Elo: %d",
			p.Exposure, p.Mu, p.Sigma, p.Elo)
		if p.Confidence != nil {
			fmt.Fprintf(&b, " | Ahead of next: %.0f%%", *p.Confidence*100)
		}
		fmt.Fprintf(&b, "\n\n")
	}

	if options.IncludeAudit {
		matches := report.Matches
		fmt.Fprintf(&b, "Match History\n")
		fmt.Fprintf(&b, "=============\n\n")
		fmt.Fprintf(&b, "Total Matches: %d\n\n", len(matches))

		recentCount := options.RecentMatches
		if recentCount <= 0 {
			recentCount = 10
		}
		recentCount = min(recentCount, len(matches))

		if recentCount > 0 {
			fmt.Fprintf(&b, "Recent Matches:\n")
			for _, m := range matches[len(matches)-recentCount:] {
				fmt.Fprintf(&b, "- round %d: %s vs %s → %s\n",
					m.Round, m.PlayerA, m.PlayerB, joinOutcomes(m))
			}
		}
	}

	_, err := io.WriteString(writer, b.String())
	return err
}

// ExportWithTemplate exports using a custom template
func (e *Exporter) ExportWithTemplate(report *Report, writer io.Writer, template ExportTemplate, options ExportOptions) error {
	data := struct {
		Report       *Report
		TotalPlayers int
		Timestamp    string
		Rankings     []RankedPlayer
	}{
		Report:       report,
		TotalPlayers: len(report.Summary.Standings),
		Timestamp:    time.Now().Format("2006-01-02 15:04:05"),
		Rankings:     e.buildRankedPlayers(report, options.IncludeStats),
	}

	if template.HeaderFormat != "" {
		tmpl, err := texttemplate.New("header").Parse(template.HeaderFormat)
		if err != nil {
			return fmt.Errorf("failed to parse header template: %w", err)
		}
		if err := tmpl.Execute(writer, data); err != nil {
			return fmt.Errorf("failed to execute header template: %w", err)
		}
	}

	if template.RowFormat != "" {
		tmpl, err := texttemplate.New("row").Parse(template.RowFormat)
		if err != nil {
			return fmt.Errorf("failed to parse row template: %w", err)
		}
		for i, ranking := range data.Rankings {
			rowData := struct {
				RankedPlayer
				Index int
			}{
				RankedPlayer: ranking,
				Index:        i,
			}
			if err := tmpl.Execute(writer, rowData); err != nil {
				return fmt.Errorf("failed to execute row template for player %s: %w", ranking.ID, err)
			}
		}
	}

	if template.FooterFormat != "" {
		tmpl, err := texttemplate.New("footer").Parse(template.FooterFormat)
		if err != nil {
			return fmt.Errorf("failed to parse footer template: %w", err)
		}
		if err := tmpl.Execute(writer, data); err != nil {
			return fmt.Errorf("failed to execute footer template: %w", err)
		}
	}

	return nil
}

// buildRankedPlayers converts standings to export rows. With stats, every
// row except the last carries the probability of being stronger than the
// player ranked right below.
func (e *Exporter) buildRankedPlayers(report *Report, includeStats bool) []RankedPlayer {
	standings := report.Summary.Standings
	rows := make([]RankedPlayer, len(standings))
	for i, s := range standings {
		rows[i] = RankedPlayer{
			Rank:     s.Rank,
			ID:       s.ID,
			Mu:       s.Rating.Mu,
			Sigma:    s.Rating.Sigma,
			Exposure: s.Exposure,
			Elo:      s.Rating.Elo,
		}
		if includeStats && i+1 < len(standings) {
			next := standings[i+1].Rating
			spread := math.Sqrt(s.Rating.Sigma*s.Rating.Sigma + next.Sigma*next.Sigma)
			confidence := 0.5 * math.Erfc(-(s.Rating.Mu-next.Mu)/(spread*math.Sqrt2))
			rows[i].Confidence = &confidence
		}
	}
	return rows
}

// calculateExportStatistics computes summary statistics for the report
func (e *Exporter) calculateExportStatistics(report *Report) *ExportStatistics {
	standings := report.Summary.Standings
	if len(standings) == 0 {
		return nil
	}

	var sumMu, sumSigma, sumExposure float64
	minExposure, maxExposure := standings[0].Exposure, standings[0].Exposure
	minElo, maxElo := standings[0].Rating.Elo, standings[0].Rating.Elo
	for _, s := range standings {
		sumMu += s.Rating.Mu
		sumSigma += s.Rating.Sigma
		sumExposure += s.Exposure
		minExposure = min(minExposure, s.Exposure)
		maxExposure = max(maxExposure, s.Exposure)
		minElo = min(minElo, s.Rating.Elo)
		maxElo = max(maxElo, s.Rating.Elo)
	}

	n := float64(len(standings))
	average := sumExposure / n
	var variance float64
	for _, s := range standings {
		diff := s.Exposure - average
		variance += diff * diff
	}
	variance /= n

	return &ExportStatistics{
		TotalPlayers:      len(standings),
		CompletedMatches:  report.Summary.Completed,
		SkippedMatches:    report.Summary.Skipped,
		AverageMu:         sumMu / n,
		AverageSigma:      sumSigma / n,
		ExposureRange:     maxExposure - minExposure,
		StandardDeviation: math.Sqrt(variance),
		EloRange:          maxElo - minElo,
		Duration:          formatDuration(report.Summary.Duration),
	}
}

func joinOutcomes(m tournament.MatchRecord) string {
	parts := make([]string, len(m.Outcomes))
	for i, o := range m.Outcomes {
		parts[i] = string(o)
	}
	return strings.Join(parts, ", ")
}

// formatFloat formats a float with three decimals
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

// formatDuration formats a duration for human reading
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
