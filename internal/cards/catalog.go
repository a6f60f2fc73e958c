package cards

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGCatalog joins grpIds against the deck builder's shared card catalog in
// Postgres, keyed by the catalog's arena_id column.
type PGCatalog struct {
	pool *pgxpool.Pool
}

// NewPGCatalog connects to the catalog database.
func NewPGCatalog(ctx context.Context, databaseURL string) (*PGCatalog, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping catalog: %w", err)
	}
	return &PGCatalog{pool: pool}, nil
}

// CardByArenaID looks a card up by its Arena id. Returns (nil, nil) when the
// catalog has no row for the id.
func (c *PGCatalog) CardByArenaID(ctx context.Context, grpID int) (*Card, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT name, mana_cost, cmc, type_line, oracle_text,
		       image_small, image_normal
		FROM cards
		WHERE arena_id = $1
	`, grpID)

	card := Card{GrpID: grpID}
	err := row.Scan(&card.Name, &card.ManaCost, &card.Cmc, &card.TypeLine,
		&card.OracleText, &card.ImageSmall, &card.ImageNormal)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog for %d: %w", grpID, err)
	}
	return &card, nil
}

// Close releases the connection pool.
func (c *PGCatalog) Close() {
	c.pool.Close()
}
