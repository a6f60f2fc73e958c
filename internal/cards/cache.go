package cards

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the persistent cache tier backed by a local sqlite file.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultCachePath places the cache database under the user's config dir.
func DefaultCachePath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}
	return filepath.Join(configDir, "mtg-deck-builder", "cards.db")
}

// NewSQLiteStore opens (creating if needed) the card cache at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open card cache: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cards (
			grp_id       INTEGER PRIMARY KEY,
			name         TEXT NOT NULL,
			mana_cost    TEXT NOT NULL DEFAULT '',
			cmc          REAL NOT NULL DEFAULT 0,
			type_line    TEXT NOT NULL DEFAULT '',
			oracle_text  TEXT NOT NULL DEFAULT '',
			image_small  TEXT NOT NULL DEFAULT '',
			image_normal TEXT NOT NULL DEFAULT '',
			placeholder  INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create cards table: %w", err)
	}
	return nil
}

// Get returns the cached card, or nil when the id has never been stored.
func (s *SQLiteStore) Get(ctx context.Context, grpID int) (*Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT grp_id, name, mana_cost, cmc, type_line, oracle_text,
		       image_small, image_normal, placeholder
		FROM cards WHERE grp_id = ?
	`, grpID)
	return scanCard(row)
}

// GetMany bulk-loads cached cards; missing ids are simply absent from the
// result.
func (s *SQLiteStore) GetMany(ctx context.Context, grpIDs []int) ([]*Card, error) {
	if len(grpIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(grpIDs)), ",")
	args := make([]any, len(grpIDs))
	for i, id := range grpIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT grp_id, name, mana_cost, cmc, type_line, oracle_text,
		       image_small, image_normal, placeholder
		FROM cards WHERE grp_id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var out []*Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, card)
	}
	return out, rows.Err()
}

// Put inserts or replaces the cached entry for the card's grpId.
func (s *SQLiteStore) Put(ctx context.Context, card *Card) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cards
			(grp_id, name, mana_cost, cmc, type_line, oracle_text,
			 image_small, image_normal, placeholder)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, card.GrpID, card.Name, card.ManaCost, card.Cmc, card.TypeLine,
		card.OracleText, card.ImageSmall, card.ImageNormal, boolToInt(card.Placeholder))
	if err != nil {
		return fmt.Errorf("failed to store card %d: %w", card.GrpID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCard(row scannable) (*Card, error) {
	var c Card
	var placeholder int
	err := row.Scan(&c.GrpID, &c.Name, &c.ManaCost, &c.Cmc, &c.TypeLine,
		&c.OracleText, &c.ImageSmall, &c.ImageNormal, &placeholder)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan card: %w", err)
	}
	c.Placeholder = placeholder != 0
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
