package store

import (
	"database/sql"
	"fmt"
)

// CursorStore holds the single provider continuation token. An empty
// string means no sync has completed yet and the next pass bootstraps
// from the full historical window.
type CursorStore struct {
	db *sql.DB
}

func NewCursorStore(db *sql.DB) *CursorStore {
	return &CursorStore{db: db}
}

// Load returns the stored delta link, or "" when none has been saved.
func (s *CursorStore) Load() (string, error) {
	var link string
	err := s.db.QueryRow("SELECT delta_link FROM sync_state WHERE id = 1").Scan(&link)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query sync state: %w", err)
	}
	return link, nil
}

// Save replaces the stored delta link. Called only at the end of a
// successful sync pass.
func (s *CursorStore) Save(link string) error {
	_, err := s.db.Exec(
		`INSERT INTO sync_state (id, delta_link, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET delta_link = excluded.delta_link, updated_at = CURRENT_TIMESTAMP`,
		link,
	)
	if err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}
