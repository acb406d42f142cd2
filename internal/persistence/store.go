// Package persistence saves and restores quest state on SQLite. State is
// stored as one JSON blob per quest: the schema never chases the QuestState
// shape, and a saved quest survives engine upgrades that only add fields.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"questloom/internal/logging"
	"questloom/internal/narrative"
)

// ErrNotFound is returned when no saved quest matches the requested ID.
var ErrNotFound = errors.New("quest not found")

const schema = `
CREATE TABLE IF NOT EXISTS quests (
	quest_id   TEXT PRIMARY KEY,
	quest_type TEXT NOT NULL,
	goal       TEXT NOT NULL,
	completed  INTEGER NOT NULL DEFAULT 0,
	failed     INTEGER NOT NULL DEFAULT 0,
	state      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store persists quest state in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open quest database: %w", err)
	}
	// The sqlite driver serializes access per connection; a single
	// connection avoids table-lock errors under WAL.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize quest schema: %w", err)
	}
	logging.Store("quest database opened: %s", path)
	return &Store{db: db}, nil
}

// Save upserts the quest keyed by its ID.
func (st *Store) Save(s *narrative.QuestState) error {
	if s == nil || s.QuestID == "" {
		return fmt.Errorf("quest state has no id")
	}
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode quest state: %w", err)
	}
	_, err = st.db.Exec(`
		INSERT INTO quests (quest_id, quest_type, goal, completed, failed, state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(quest_id) DO UPDATE SET
			quest_type = excluded.quest_type,
			goal       = excluded.goal,
			completed  = excluded.completed,
			failed     = excluded.failed,
			state      = excluded.state,
			updated_at = excluded.updated_at`,
		s.QuestID, string(s.Type), s.Goal, boolInt(s.Completed), boolInt(s.Failed),
		string(blob), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save quest %s: %w", s.QuestID, err)
	}
	logging.Store("quest saved: %s (%d bytes)", s.QuestID, len(blob))
	return nil
}

// Load restores the quest with the given ID, or ErrNotFound.
func (st *Store) Load(questID string) (*narrative.QuestState, error) {
	var blob string
	err := st.db.QueryRow(`SELECT state FROM quests WHERE quest_id = ?`, questID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quest %s: %w", questID, err)
	}
	var s narrative.QuestState
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		return nil, fmt.Errorf("failed to decode quest %s: %w", questID, err)
	}
	return &s, nil
}

// Delete removes a saved quest. Deleting an absent quest is not an error.
func (st *Store) Delete(questID string) error {
	if _, err := st.db.Exec(`DELETE FROM quests WHERE quest_id = ?`, questID); err != nil {
		return fmt.Errorf("failed to delete quest %s: %w", questID, err)
	}
	return nil
}

// QuestMeta is a listing row; the full state stays in the blob.
type QuestMeta struct {
	QuestID   string
	Type      narrative.QuestType
	Goal      string
	Completed bool
	Failed    bool
	UpdatedAt time.Time
}

// List returns saved quests, most recently updated first.
func (st *Store) List() ([]QuestMeta, error) {
	rows, err := st.db.Query(`
		SELECT quest_id, quest_type, goal, completed, failed, updated_at
		FROM quests ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}
	defer rows.Close()

	var out []QuestMeta
	for rows.Next() {
		var m QuestMeta
		var qt, updated string
		var completed, failed int
		if err := rows.Scan(&m.QuestID, &qt, &m.Goal, &completed, &failed, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan quest row: %w", err)
		}
		m.Type = narrative.QuestType(qt)
		m.Completed = completed != 0
		m.Failed = failed != 0
		m.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close closes the database.
func (st *Store) Close() error {
	return st.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
