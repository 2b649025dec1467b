package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pashagolub/skillrank/pkg/elo"
	"github.com/pashagolub/skillrank/pkg/skill"
	"github.com/pashagolub/skillrank/pkg/tournament"
)

// Error types for storage operations
var (
	ErrCSVFormat        = errors.New("CSV format error")
	ErrNoCandidates     = errors.New("no candidates found")
	ErrInvalidTally     = errors.New("invalid tally")
	ErrAtomicWrite      = errors.New("atomic write operation failed")
	ErrUnknownCandidate = errors.New("unknown candidate")
	ErrDuplicateID      = errors.New("duplicate candidate id")
)

// Candidate is one row of a candidates file: an identifier and its numeric sequence
type Candidate struct {
	ID     string    `json:"id" yaml:"id"`
	Values []float64 `json:"values" yaml:"values"`
}

// CSVParseResult contains the result of parsing a candidates file
type CSVParseResult struct {
	Candidates     []Candidate     `json:"candidates"`
	ParseErrors    []CSVParseError `json:"parse_errors,omitempty"`
	SkippedRows    []int           `json:"skipped_rows,omitempty"`
	Header         []string        `json:"header,omitempty"`
	TotalRows      int             `json:"total_rows"`
	SuccessfulRows int             `json:"successful_rows"`
	ParsedAt       time.Time       `json:"parsed_at"`
}

// CSVParseError represents an error encountered while parsing a CSV row
type CSVParseError struct {
	RowNumber int    `json:"row_number"`
	Field     string `json:"field"`
	Value     string `json:"value"`
	Message   string `json:"error"`
}

// Error implements the error interface
func (e CSVParseError) Error() string {
	return fmt.Sprintf("row %d, field '%s' (value: '%s'): %s", e.RowNumber, e.Field, e.Value, e.Message)
}

// LoadCandidatesFromCSV reads a candidates file: one candidate per row, the id
// in the first column followed by its numeric values. A leading header row is
// detected and skipped. Malformed rows are reported in ParseErrors and skipped.
func LoadCandidatesFromCSV(filename string) (*CSVParseResult, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open CSV file %s: %v", ErrCSVFormat, filename, err)
	}
	defer func() { _ = file.Close() }()

	return ParseCandidates(file)
}

// ParseCandidates parses candidates from reader
func ParseCandidates(reader io.Reader) (*CSVParseResult, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1 // candidates may differ in length
	csvReader.TrimLeadingSpace = true
	csvReader.Comment = '#'

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse CSV: %v", ErrCSVFormat, err)
	}

	result := &CSVParseResult{
		Candidates:  make([]Candidate, 0, len(records)),
		ParseErrors: make([]CSVParseError, 0),
		SkippedRows: make([]int, 0),
		TotalRows:   len(records),
		ParsedAt:    time.Now().UTC(),
	}

	startRow := 0
	if len(records) > 0 && isHeaderRow(records[0]) {
		result.Header = records[0]
		startRow = 1
	}

	seen := make(map[string]int)
	for rowIdx := startRow; rowIdx < len(records); rowIdx++ {
		row := records[rowIdx]
		rowNum := rowIdx + 1

		if isEmptyRow(row) {
			result.SkippedRows = append(result.SkippedRows, rowNum)
			continue
		}

		candidate, parseErr := parseCandidateRow(row, rowNum)
		if parseErr != nil {
			result.ParseErrors = append(result.ParseErrors, *parseErr)
			continue
		}

		if first, dup := seen[candidate.ID]; dup {
			result.ParseErrors = append(result.ParseErrors, CSVParseError{
				RowNumber: rowNum,
				Field:     "id",
				Value:     candidate.ID,
				Message:   fmt.Sprintf("%v: first seen on row %d", ErrDuplicateID, first),
			})
			continue
		}
		seen[candidate.ID] = rowNum

		result.Candidates = append(result.Candidates, candidate)
		result.SuccessfulRows++
	}

	return result, nil
}

// isHeaderRow treats the first row as a header when its second field is not a number
func isHeaderRow(row []string) bool {
	if len(row) < 2 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
	return err != nil
}

// isEmptyRow checks if a CSV row is empty or contains only whitespace
func isEmptyRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func parseCandidateRow(row []string, rowNum int) (Candidate, *CSVParseError) {
	id := strings.TrimSpace(row[0])
	if id == "" {
		return Candidate{}, &CSVParseError{RowNumber: rowNum, Field: "id", Message: "id is required"}
	}

	values := make([]float64, 0, len(row)-1)
	for col, raw := range row[1:] {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			// trailing separators
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Candidate{}, &CSVParseError{
				RowNumber: rowNum,
				Field:     fmt.Sprintf("v%d", col+1),
				Value:     raw,
				Message:   "value is not a number",
			}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Candidate{}, &CSVParseError{
				RowNumber: rowNum,
				Field:     fmt.Sprintf("v%d", col+1),
				Value:     raw,
				Message:   "value is not finite",
			}
		}
		values = append(values, v)
	}

	if len(values) == 0 {
		return Candidate{}, &CSVParseError{RowNumber: rowNum, Field: "id", Value: id, Message: "candidate has no values"}
	}

	return Candidate{ID: id, Values: values}, nil
}

// Players turns candidates into a tournament population with fresh ratings
func Players(candidates []Candidate, engine *skill.Engine) ([]tournament.Player[float64], error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	players := make([]tournament.Player[float64], len(candidates))
	for i, c := range candidates {
		rating, err := engine.CreateRating()
		if err != nil {
			return nil, fmt.Errorf("failed to create rating for %s: %w", c.ID, err)
		}
		players[i] = tournament.Player[float64]{ID: c.ID, Candidate: c.Values, Rating: rating}
	}
	return players, nil
}

// SplitBaseline removes the candidate with baselineID from players and
// returns it separately
func SplitBaseline[T any](players []tournament.Player[T], baselineID string) (tournament.Player[T], []tournament.Player[T], error) {
	for i, p := range players {
		if p.ID != baselineID {
			continue
		}
		rest := make([]tournament.Player[T], 0, len(players)-1)
		rest = append(rest, players[:i]...)
		rest = append(rest, players[i+1:]...)
		return p, rest, nil
	}
	return tournament.Player[T]{}, nil, fmt.Errorf("%w: %s", ErrUnknownCandidate, baselineID)
}

// Tally is the input of a batch Elo recomputation. Result holds the signed net
// outcome of row against column, GameCount the number of games played.
type Tally struct {
	Ratings   []float64 `yaml:"ratings" json:"ratings"`
	Result    [][]int   `yaml:"result" json:"result"`
	GameCount [][]int   `yaml:"game_count" json:"game_count"`
}

// LoadTally reads a tally from a YAML file
func LoadTally(filename string) (*Tally, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open tally file %s: %v", ErrInvalidTally, filename, err)
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var tally Tally
	if err := decoder.Decode(&tally); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTally, filename, err)
	}

	if err := tally.Validate(); err != nil {
		return nil, err
	}

	return &tally, nil
}

// Validate checks that the matrices are square and match the ratings
func (t *Tally) Validate() error {
	n := len(t.Ratings)
	if n == 0 {
		return fmt.Errorf("%w: ratings are empty", ErrInvalidTally)
	}
	if len(t.Result) != n || len(t.GameCount) != n {
		return fmt.Errorf("%w: %w: %d ratings, %d result rows, %d game count rows",
			ErrInvalidTally, elo.ErrShapeMismatch, n, len(t.Result), len(t.GameCount))
	}
	for i := range n {
		if len(t.Result[i]) != n || len(t.GameCount[i]) != n {
			return fmt.Errorf("%w: %w: row %d", ErrInvalidTally, elo.ErrShapeMismatch, i)
		}
	}
	return nil
}

// SaveToFile writes the tally as YAML using a temporary file and rename
func (t *Tally) SaveToFile(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("%w: cannot create directory: %v", ErrAtomicWrite, err)
	}

	tempFile := filename + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("%w: cannot create temp file: %v", ErrAtomicWrite, err)
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(t); err != nil {
		_ = file.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("%w: failed to encode tally: %v", ErrAtomicWrite, err)
	}
	_ = encoder.Close()

	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("%w: failed to sync tally file: %v", ErrAtomicWrite, err)
	}

	_ = file.Close()

	if err := os.Rename(tempFile, filename); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("%w: atomic rename failed: %v", ErrAtomicWrite, err)
	}

	return nil
}
