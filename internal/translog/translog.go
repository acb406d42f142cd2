// Package translog appends one JSON record per committed turn (JSON Lines)
// and aggregates a per-quest summary from a recorded file. The log is the
// engine's audit trail: every committed transition carries the full before
// and after state, so a quest can be replayed or debugged offline.
package translog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"questloom/internal/consistency"
	"questloom/internal/logging"
	"questloom/internal/narrative"
)

// Timings records elapsed milliseconds per turn phase.
type Timings struct {
	AssemblyMS   int64 `json:"assembly_ms"`
	GenerationMS int64 `json:"generation_ms"`
	ValidationMS int64 `json:"validation_ms"`
	LoggingMS    int64 `json:"logging_ms"`
}

// Record is one committed turn transition.
type Record struct {
	RecordID    string    `json:"record_id"`
	QuestID     string    `json:"quest_id"`
	Turn        int       `json:"turn"`
	Encounter   string    `json:"encounter_type"`
	PlayerInput string    `json:"player_input"`
	Narration   string    `json:"narration"`
	LoggedAt    time.Time `json:"logged_at"`

	Previous *narrative.QuestState `json:"previous_state"`
	Next     *narrative.QuestState `json:"new_state"`

	TokensUsed    int      `json:"tokens_used"`
	TiersIncluded []string `json:"tiers_included,omitempty"`

	Score   *consistency.Score `json:"consistency,omitempty"`
	Timings Timings            `json:"timings"`
}

// Writer appends records to a JSON Lines file. Safe for use from one
// orchestrator; the mutex only guards against a host calling Close while an
// append is in flight.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// NewWriter opens (or creates) the log file for appending.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open transition log: %w", err)
	}
	return &Writer{f: f, path: path}, nil
}

// Append writes one record as a single JSON line. A missing record ID and
// timestamp are filled in; the logging phase timing is measured here since
// only the writer knows what encoding costs.
func (w *Writer) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return fmt.Errorf("transition log is closed")
	}

	start := time.Now()
	if r.RecordID == "" {
		r.RecordID = uuid.NewString()
	}
	if r.LoggedAt.IsZero() {
		r.LoggedAt = time.Now().UTC()
	}
	// Priced with a dry-run encode so the record itself carries the cost.
	if _, err := json.Marshal(r); err != nil {
		return fmt.Errorf("failed to encode transition record: %w", err)
	}
	r.Timings.LoggingMS = time.Since(start).Milliseconds()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode transition record: %w", err)
	}
	if _, err := w.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append transition record: %w", err)
	}
	logging.TransLog("recorded turn %d of quest %s (%d bytes)", r.Turn, r.QuestID, len(data))
	return nil
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// ReadAll loads every record from a JSON Lines file. Unparseable lines are
// skipped with a count rather than failing the whole read, since a crashed
// process can leave a truncated final line.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transition log: %w", err)
	}
	defer f.Close()

	var records []Record
	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			skipped++
			continue
		}
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transition log: %w", err)
	}
	if skipped > 0 {
		logging.TransLog("skipped %d unparseable lines in %s", skipped, path)
	}
	return records, nil
}
