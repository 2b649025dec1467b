// Package journal records tournaments. It keeps an append-only audit log in
// JSON Lines format where every entry is chained to the previous one by a
// SHA-256 hash, so any later edit of the file is detected, and it exports
// final standings as CSV, JSON, YAML or a text report.
package journal

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pashagolub/skillrank/pkg/skill"
	"github.com/pashagolub/skillrank/pkg/tournament"
)

// Error types for audit trail operations
var (
	ErrAuditLogCorrupted = errors.New("audit log corrupted or tampered")
	ErrInvalidLogEntry   = errors.New("invalid log entry format")
	ErrNotInitialized    = errors.New("audit trail not initialized")
)

// AuditEventType represents the type of event being logged
type AuditEventType string

const (
	EventTournamentStarted   AuditEventType = "tournament_started"
	EventMatchCompleted      AuditEventType = "match_completed"
	EventMatchSkipped        AuditEventType = "match_skipped"
	EventRatingUpdated       AuditEventType = "rating_updated"
	EventTournamentCompleted AuditEventType = "tournament_completed"
)

// AuditEntry represents a single entry in the audit log
type AuditEntry struct {
	// Core identification
	ID           string         `json:"id"`            // Unique entry identifier
	Timestamp    time.Time      `json:"timestamp"`     // When the event occurred
	EventType    AuditEventType `json:"event_type"`    // Type of event being logged
	RunID        string         `json:"run_id"`        // Audit run this entry belongs to
	TournamentID string         `json:"tournament_id"` // Tournament the event belongs to

	// Event data
	Data map[string]any `json:"data"`

	// Integrity protection
	PreviousHash string `json:"previous_hash"` // Hash of previous entry
	EntryHash    string `json:"entry_hash"`    // Hash of this entry's content
	Sequence     uint64 `json:"sequence"`      // Sequential entry number
}

// AuditTrail is an append-only, hash-chained log of tournament events. It
// implements tournament.MatchObserver. Observer callbacks cannot return
// errors, so the first write failure is kept and reported by Err and Close.
type AuditTrail struct {
	runID         string
	logFilePath   string
	file          *os.File
	mutex         sync.Mutex
	lastHash      string
	sequence      uint64
	isInitialized bool
	writeErr      error
}

// NewAuditTrail opens the audit log of runID in logDirectory. An existing log
// is verified and appended to.
func NewAuditTrail(runID, logDirectory string) (*AuditTrail, error) {
	if runID == "" {
		return nil, errors.New("run ID cannot be empty")
	}

	if err := os.MkdirAll(logDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	audit := &AuditTrail{
		runID:       runID,
		logFilePath: filepath.Join(logDirectory, fmt.Sprintf("audit_%s.jsonl", runID)),
	}

	if err := audit.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize audit trail: %w", err)
	}

	return audit, nil
}

// initialize prepares the audit trail for use
func (a *AuditTrail) initialize() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if _, err := os.Stat(a.logFilePath); err == nil {
		lastHash, sequence, err := a.scan()
		if err != nil {
			return fmt.Errorf("audit log validation failed: %w", err)
		}
		a.lastHash, a.sequence = lastHash, sequence
	} else if !os.IsNotExist(err) {
		return err
	}

	file, err := os.OpenFile(a.logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	a.file = file
	a.isInitialized = true
	return nil
}

// scan walks the log and checks sequence numbers and the hash chain. It
// returns the hash of the last entry and the next sequence number.
func (a *AuditTrail) scan() (string, uint64, error) {
	readFile, err := os.Open(a.logFilePath)
	if err != nil {
		return "", 0, err
	}
	defer readFile.Close()

	var previousHash string
	sequence := uint64(0)

	err = readEntries(readFile, func(entry *AuditEntry, parseErr error) error {
		if parseErr != nil {
			return fmt.Errorf("%w: sequence %d: %w", ErrInvalidLogEntry, sequence, parseErr)
		}
		if entry.Sequence != sequence {
			return fmt.Errorf("%w: sequence mismatch at entry %d, got %d",
				ErrAuditLogCorrupted, sequence, entry.Sequence)
		}
		if entry.PreviousHash != previousHash {
			return fmt.Errorf("%w: hash chain broken at sequence %d", ErrAuditLogCorrupted, sequence)
		}
		if entry.EntryHash != calculateEntryHash(entry) {
			return fmt.Errorf("%w: entry hash mismatch at sequence %d", ErrAuditLogCorrupted, sequence)
		}
		previousHash = entry.EntryHash
		sequence++
		return nil
	})
	if err != nil {
		return "", 0, err
	}

	return previousHash, sequence, nil
}

// readEntries decodes every non-empty line of r and passes it to fn
func readEntries(r io.Reader, fn func(*AuditEntry, error) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry AuditEntry
		if err := fn(&entry, json.Unmarshal([]byte(line), &entry)); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading audit log: %w", err)
	}
	return nil
}

// TournamentStarted logs the start of a tournament.
func (a *AuditTrail) TournamentStarted(_ context.Context, info tournament.TournamentInfo) {
	a.record(EventTournamentStarted, info.ID, map[string]any{
		"kind":              info.Kind,
		"players":           info.Players,
		"rounds":            info.Rounds,
		"matches_per_round": info.MatchesPerRound,
	})
}

// MatchCompleted logs a rated match followed by one rating update per
// player whose rating changed.
func (a *AuditTrail) MatchCompleted(_ context.Context, rec tournament.MatchRecord) {
	a.record(EventMatchCompleted, rec.TournamentID, map[string]any{
		"match_id":   rec.ID,
		"round":      rec.Round,
		"player_ids": []string{rec.PlayerA, rec.PlayerB},
		"outcomes":   rec.Outcomes,
		"quality":    rec.Quality,
		"duration":   rec.Duration.String(),
	})

	a.recordRating(rec, rec.PlayerA, rec.BeforeA, rec.AfterA)
	if rec.Kind != tournament.KindGauntlet {
		a.recordRating(rec, rec.PlayerB, rec.BeforeB, rec.AfterB)
	}
}

func (a *AuditTrail) recordRating(rec tournament.MatchRecord, playerID string, before, after skill.Rating) {
	a.record(EventRatingUpdated, rec.TournamentID, map[string]any{
		"match_id":  rec.ID,
		"player_id": playerID,
		"old_mu":    before.Mu,
		"new_mu":    after.Mu,
		"old_sigma": before.Sigma,
		"new_sigma": after.Sigma,
		"old_elo":   before.Elo,
		"new_elo":   after.Elo,
		"elo_delta": after.Elo - before.Elo,
		"exposure":  after.Exposure(),
	})
}

// MatchSkipped logs a match that could not be played or rated.
func (a *AuditTrail) MatchSkipped(_ context.Context, failure tournament.MatchError) {
	a.record(EventMatchSkipped, failure.TournamentID, map[string]any{
		"round":       failure.Round,
		"player_ids":  []string{failure.PlayerA, failure.PlayerB},
		"skip_reason": failure.Err.Error(),
	})
}

// TournamentCompleted logs the end of a tournament with its final ranking.
func (a *AuditTrail) TournamentCompleted(_ context.Context, summary tournament.TournamentSummary) {
	ranking := make([]string, 0, len(summary.Standings))
	for _, s := range summary.Standings {
		ranking = append(ranking, s.ID)
	}
	data := map[string]any{
		"kind":      summary.Kind,
		"completed": summary.Completed,
		"skipped":   summary.Skipped,
		"duration":  summary.Duration.String(),
		"ranking":   ranking,
	}
	if summary.Err != nil {
		data["error"] = summary.Err.Error()
	}
	a.record(EventTournamentCompleted, summary.ID, data)
}

// record writes an entry and keeps the first failure
func (a *AuditTrail) record(eventType AuditEventType, tournamentID string, data map[string]any) {
	if err := a.LogEvent(eventType, tournamentID, data); err != nil {
		a.mutex.Lock()
		if a.writeErr == nil {
			a.writeErr = err
		}
		a.mutex.Unlock()
	}
}

// LogEvent appends one entry to the audit log
func (a *AuditTrail) LogEvent(eventType AuditEventType, tournamentID string, data map[string]any) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if !a.isInitialized {
		return ErrNotInitialized
	}

	// Round-trip the payload so the stored hash matches what a reader decodes
	normalized, err := normalize(data)
	if err != nil {
		return fmt.Errorf("failed to marshal audit data: %w", err)
	}

	entry := AuditEntry{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		RunID:        a.runID,
		TournamentID: tournamentID,
		Data:         normalized,
		PreviousHash: a.lastHash,
		Sequence:     a.sequence,
	}
	entry.EntryHash = calculateEntryHash(&entry)

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	if _, err := a.file.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	if err := a.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}

	a.lastHash = entry.EntryHash
	a.sequence++

	return nil
}

func normalize(data map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// calculateEntryHash computes the SHA-256 hash of an entry's content
func calculateEntryHash(entry *AuditEntry) string {
	hashContent := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%s",
		entry.ID,
		entry.Timestamp.Format(time.RFC3339Nano),
		entry.EventType,
		entry.RunID,
		entry.TournamentID,
		entry.PreviousHash,
		entry.Sequence,
		hashData(entry.Data))

	hash := sha256.Sum256([]byte(hashContent))
	return hex.EncodeToString(hash[:])
}

// hashData creates a deterministic hash of the data map
func hashData(data map[string]any) string {
	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}

// Err returns the first error met while recording observer events.
func (a *AuditTrail) Err() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.writeErr
}

// Close closes the audit trail. It returns the first recording error, if
// any, or the error from closing the file.
func (a *AuditTrail) Close() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.file == nil {
		return a.writeErr
	}

	err := a.file.Close()
	a.file = nil
	a.isInitialized = false
	if a.writeErr != nil {
		return a.writeErr
	}
	return err
}

// GetLogPath returns the path to the audit log file
func (a *AuditTrail) GetLogPath() string {
	return a.logFilePath
}

// GetSequence returns the current sequence number
func (a *AuditTrail) GetSequence() uint64 {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.sequence
}

// QueryOptions defines filtering criteria for audit log queries
type QueryOptions struct {
	EventTypes   []AuditEventType `json:"event_types,omitempty"`
	StartTime    *time.Time       `json:"start_time,omitempty"`
	EndTime      *time.Time       `json:"end_time,omitempty"`
	TournamentID string           `json:"tournament_id,omitempty"`
	MatchID      string           `json:"match_id,omitempty"`
	PlayerID     string           `json:"player_id,omitempty"`
	Limit        int              `json:"limit,omitempty"`  // Maximum number of entries to return
	Offset       int              `json:"offset,omitempty"` // Number of entries to skip
}

// QueryResult contains the results of an audit log query
type QueryResult struct {
	Entries      []AuditEntry `json:"entries"`
	TotalCount   int          `json:"total_count"`
	HasMore      bool         `json:"has_more"`
	QueryOptions QueryOptions `json:"query_options"`
}

// Query searches the audit log for entries matching the specified criteria.
// Malformed lines are skipped; use VerifyIntegrity to detect them.
func (a *AuditTrail) Query(options QueryOptions) (*QueryResult, error) {
	if !a.initialized() {
		return nil, ErrNotInitialized
	}

	readFile, err := os.Open(a.logFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log for reading: %w", err)
	}
	defer readFile.Close()

	var allMatches []AuditEntry
	err = readEntries(readFile, func(entry *AuditEntry, parseErr error) error {
		if parseErr == nil && matchesQuery(entry, options) {
			allMatches = append(allMatches, *entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	totalCount := len(allMatches)
	start := min(max(options.Offset, 0), totalCount)
	end := totalCount
	if options.Limit > 0 {
		end = min(start+options.Limit, totalCount)
	}

	return &QueryResult{
		Entries:      allMatches[start:end],
		TotalCount:   totalCount,
		HasMore:      end < totalCount,
		QueryOptions: options,
	}, nil
}

func (a *AuditTrail) initialized() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.isInitialized
}

// matchesQuery determines if an entry matches the query criteria
func matchesQuery(entry *AuditEntry, options QueryOptions) bool {
	if len(options.EventTypes) > 0 && !slices.Contains(options.EventTypes, entry.EventType) {
		return false
	}

	if options.StartTime != nil && entry.Timestamp.Before(*options.StartTime) {
		return false
	}
	if options.EndTime != nil && entry.Timestamp.After(*options.EndTime) {
		return false
	}

	if options.TournamentID != "" && entry.TournamentID != options.TournamentID {
		return false
	}

	if options.MatchID != "" {
		if matchID, ok := entry.Data["match_id"].(string); !ok || matchID != options.MatchID {
			return false
		}
	}

	if options.PlayerID != "" {
		if playerID, ok := entry.Data["player_id"].(string); ok && playerID == options.PlayerID {
			return true
		}
		ids, _ := entry.Data["player_ids"].([]any)
		return slices.Contains(ids, any(options.PlayerID))
	}

	return true
}

// GetMatchHistory retrieves every entry written for one match
func (a *AuditTrail) GetMatchHistory(matchID string) ([]AuditEntry, error) {
	result, err := a.Query(QueryOptions{MatchID: matchID})
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// GetPlayerHistory retrieves all audit entries related to a specific player
func (a *AuditTrail) GetPlayerHistory(playerID string) ([]AuditEntry, error) {
	result, err := a.Query(QueryOptions{PlayerID: playerID})
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// VerifyIntegrity performs a complete integrity check of the audit log
func (a *AuditTrail) VerifyIntegrity() error {
	if !a.initialized() {
		return ErrNotInitialized
	}
	_, _, err := a.scan()
	return err
}

// AuditStatistics provides summary information about the audit log
type AuditStatistics struct {
	RunID        string                 `json:"run_id"`
	TotalEntries int                    `json:"total_entries"`
	Tournaments  int                    `json:"tournaments"`
	EventCounts  map[AuditEventType]int `json:"event_counts"`
	FirstEntry   *time.Time             `json:"first_entry,omitempty"`
	LastEntry    *time.Time             `json:"last_entry,omitempty"`
	LastUpdated  time.Time              `json:"last_updated"`
}

// GetStatistics returns statistics about the audit log
func (a *AuditTrail) GetStatistics() (*AuditStatistics, error) {
	result, err := a.Query(QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate statistics: %w", err)
	}

	stats := &AuditStatistics{
		RunID:        a.runID,
		TotalEntries: result.TotalCount,
		EventCounts:  make(map[AuditEventType]int),
		LastUpdated:  time.Now().UTC(),
	}

	if len(result.Entries) > 0 {
		stats.FirstEntry = &result.Entries[0].Timestamp
		stats.LastEntry = &result.Entries[len(result.Entries)-1].Timestamp
	}

	tournaments := make(map[string]struct{})
	for _, entry := range result.Entries {
		stats.EventCounts[entry.EventType]++
		tournaments[entry.TournamentID] = struct{}{}
	}
	stats.Tournaments = len(tournaments)

	return stats, nil
}
