package cards

import (
	"context"
	"fmt"
)

// Card is the resolved metadata for one Arena grpId.
type Card struct {
	GrpID       int     `json:"grpId"`
	Name        string  `json:"name"`
	ManaCost    string  `json:"manaCost"`
	Cmc         float64 `json:"cmc"`
	TypeLine    string  `json:"typeLine"`
	OracleText  string  `json:"oracleText"`
	ImageSmall  string  `json:"imageSmall"`
	ImageNormal string  `json:"imageNormal"`
	Placeholder bool    `json:"placeholder"`
}

// placeholderCard synthesizes a stand-in for an id with no data anywhere, so
// resolution never errors and the miss is cached rather than retried.
func placeholderCard(grpID int) *Card {
	return &Card{
		GrpID:       grpID,
		Name:        fmt.Sprintf("Card #%d", grpID),
		TypeLine:    "Unknown",
		Placeholder: true,
	}
}

// Store is the persistent cache tier. Implementations run parameterized
// queries against whatever engine backs them; the resolver assumes nothing
// beyond zero-or-one-row gets and idempotent puts.
type Store interface {
	Get(ctx context.Context, grpID int) (*Card, error)
	GetMany(ctx context.Context, grpIDs []int) ([]*Card, error)
	Put(ctx context.Context, card *Card) error
	Close() error
}

// Catalog joins grpIds against an existing card catalog keyed by an
// alternate id. A (nil, nil) return means the id is not in the catalog.
type Catalog interface {
	CardByArenaID(ctx context.Context, grpID int) (*Card, error)
}

// RemoteLookup fetches card metadata by Arena id from a remote source.
// A (nil, nil) return is the valid "unknown card" outcome.
type RemoteLookup interface {
	CardByArenaID(ctx context.Context, grpID int) (*Card, error)
}
