package cards

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	scryfallBaseURL = "https://api.scryfall.com"

	// Scryfall asks clients to space requests 50-100ms apart.
	scryfallMinInterval = 100 * time.Millisecond
)

// ScryfallClient fetches card metadata by Arena id, enforcing a minimum
// interval between remote calls.
type ScryfallClient struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

// NewScryfallClient creates a client against the public Scryfall API.
func NewScryfallClient() *ScryfallClient {
	return &ScryfallClient{
		baseURL:    scryfallBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		interval:   scryfallMinInterval,
	}
}

// newScryfallClientForTest points the client at a stub server with no pacing.
func newScryfallClientForTest(baseURL string, interval time.Duration) *ScryfallClient {
	return &ScryfallClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		interval:   interval,
	}
}

// wire shape of a Scryfall card; double-faced cards carry their images on
// the faces instead of the top level.
type scryfallCard struct {
	Name       string  `json:"name"`
	ManaCost   string  `json:"mana_cost"`
	Cmc        float64 `json:"cmc"`
	TypeLine   string  `json:"type_line"`
	OracleText string  `json:"oracle_text"`
	ImageURIs  struct {
		Small  string `json:"small"`
		Normal string `json:"normal"`
	} `json:"image_uris"`
	CardFaces []struct {
		ManaCost   string `json:"mana_cost"`
		OracleText string `json:"oracle_text"`
		ImageURIs  struct {
			Small  string `json:"small"`
			Normal string `json:"normal"`
		} `json:"image_uris"`
	} `json:"card_faces"`
}

// CardByArenaID fetches one card. A 404 (or any non-200) is the valid
// "unknown card" outcome and returns (nil, nil); only transport failures
// surface as errors.
func (c *ScryfallClient) CardByArenaID(ctx context.Context, grpID int) (*Card, error) {
	c.pace()

	url := fmt.Sprintf("%s/cards/arena/%d", c.baseURL, grpID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scryfall request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var sc scryfallCard
	if err := json.NewDecoder(resp.Body).Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to decode scryfall response: %w", err)
	}

	card := &Card{
		GrpID:       grpID,
		Name:        sc.Name,
		ManaCost:    sc.ManaCost,
		Cmc:         sc.Cmc,
		TypeLine:    sc.TypeLine,
		OracleText:  sc.OracleText,
		ImageSmall:  sc.ImageURIs.Small,
		ImageNormal: sc.ImageURIs.Normal,
	}
	// Fall back to the front face for layouts without top-level data.
	if len(sc.CardFaces) > 0 {
		front := sc.CardFaces[0]
		if card.ManaCost == "" {
			card.ManaCost = front.ManaCost
		}
		if card.OracleText == "" {
			card.OracleText = front.OracleText
		}
		if card.ImageSmall == "" {
			card.ImageSmall = front.ImageURIs.Small
			card.ImageNormal = front.ImageURIs.Normal
		}
	}
	return card, nil
}

// pace blocks until the minimum interval since the previous remote call has
// elapsed. Only the timing of remote calls is serialized; cache and catalog
// lookups for other ids are unaffected.
func (c *ScryfallClient) pace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wait := c.interval - time.Since(c.lastCall); wait > 0 {
		time.Sleep(wait)
	}
	c.lastCall = time.Now()
}
