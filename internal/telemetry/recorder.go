// Package telemetry accumulates an ordered per-match action log and rolls it
// up into flush batches for the remote stats endpoint. Delivery and retry
// live with the caller; the recorder only guarantees ordered, non-overlapping
// batches.
package telemetry

import (
	"sort"
	"sync"
	"time"

	"github.com/Karolis332/MTG-deck-builder-sub000/internal/events"
)

// FlushTurnGap is how many turns must pass before a periodic flush releases
// a batch.
const FlushTurnGap = 3

// Action kinds recorded in the match log.
const (
	KindMatchStart   = "match_start"
	KindMatchEnd     = "match_end"
	KindDeckSubmit   = "deck_submission"
	KindMulligan     = "mulligan"
	KindHandRevealed = "hand_revealed"
	KindCardDrawn    = "card_drawn"
	KindCardPlayed   = "card_played"
	KindLifeChange   = "life_change"
	KindTurnChange   = "turn_change"
	KindPhaseChange  = "phase_change"
	KindSideboard    = "sideboard"
)

// Action is one ordered record in the per-match log. Order is strictly
// monotonic within a recorder lifetime.
type Action struct {
	Order   int64     `json:"order"`
	MatchID string    `json:"matchId"`
	Game    int       `json:"game"`
	Turn    int       `json:"turn"`
	Phase   string    `json:"phase"`
	Kind    string    `json:"kind"`
	Seat    int       `json:"seat"`
	GrpID   int       `json:"grpId,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// LifePoint is one entry in the match's life progression series.
type LifePoint struct {
	Game int `json:"game"`
	Turn int `json:"turn"`
	Seat int `json:"seat"`
	Life int `json:"life"`
}

// SideboardDiff is the multiset difference between the decks submitted
// before and after one sideboard period, expanded per copy.
type SideboardDiff struct {
	Game       int   `json:"game"`
	BoardedIn  []int `json:"boardedIn"`
	BoardedOut []int `json:"boardedOut"`
}

// MatchSummary is the end-of-match rollup returned by FlushFinal.
type MatchSummary struct {
	MatchID            string          `json:"matchId"`
	Result             string          `json:"result"`
	OpeningHand        []int           `json:"openingHand"`
	MulliganCount      int             `json:"mulliganCount"`
	OnPlay             bool            `json:"onPlay"`
	LifeProgression    []LifePoint     `json:"lifeProgression"`
	DrawOrder          []int           `json:"drawOrder"`
	SideboardDiffs     []SideboardDiff `json:"sideboardDiffs"`
	OpponentSeenByTurn map[int][]int   `json:"opponentSeenByTurn"`
}

// Recorder builds the action log from the same event stream the engine
// consumes.
type Recorder struct {
	mu sync.Mutex

	order   int64
	matchID string
	seat    int
	game    int
	turn    int
	phase   string

	actions       []Action
	flushed       int // actions[:flushed] have been returned by Flush
	lastFlushTurn int

	result       string
	openingHand  []int
	mulligans    int
	onPlay       bool
	onPlayKnown  bool
	lifeSeries   []LifePoint
	drawOrder    []int
	oppSeenTurn  map[int][]int
	currentDeck  []events.CardQuantity
	preBoardDeck []events.CardQuantity
	inSideboard  bool
	diffs        []SideboardDiff
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{oppSeenTurn: make(map[int][]int)}
}

// Reset drops all accumulated state, for rotation or watcher restart. The
// order counter never rewinds.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchID = ""
	r.seat = 0
	r.game = 0
	r.turn = 0
	r.phase = ""
	r.actions = nil
	r.flushed = 0
	r.lastFlushTurn = 0
	r.result = ""
	r.openingHand = nil
	r.mulligans = 0
	r.onPlay = false
	r.onPlayKnown = false
	r.lifeSeries = nil
	r.drawOrder = nil
	r.oppSeenTurn = make(map[int][]int)
	r.currentDeck = nil
	r.preBoardDeck = nil
	r.inSideboard = false
	r.diffs = nil
}

// Record folds one event into the action log.
func (r *Recorder) Record(ev events.GameEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev := ev.(type) {
	case events.MatchStart:
		r.matchID = ev.MatchID
		r.seat = ev.SeatID
		r.game = 1
		r.turn = 0
		r.phase = ""
		r.append(KindMatchStart, ev.SeatID, 0, ev.EventName)

	case events.MatchComplete:
		r.result = ev.Result
		r.append(KindMatchEnd, 0, 0, ev.Result)

	case events.DeckSubmission:
		r.currentDeck = append([]events.CardQuantity(nil), ev.Deck...)
		if r.inSideboard {
			r.diffs = append(r.diffs, diffDecks(r.preBoardDeck, r.currentDeck, r.game))
			r.inSideboard = false
		}
		r.append(KindDeckSubmit, r.seat, 0, "")

	case events.Intermission:
		r.preBoardDeck = append([]events.CardQuantity(nil), r.currentDeck...)
		r.inSideboard = true
		r.game = ev.GameNumber
		r.turn = 0
		r.phase = ""
		r.append(KindSideboard, 0, 0, "")

	case events.MulliganPrompt:
		if ev.Hand != nil {
			// A revealed hand is not yet a kept hand: the player may still
			// mulligan it, which arrives as the next numbered prompt.
			if r.game == 1 && r.openingHand == nil {
				r.openingHand = append([]int(nil), ev.Hand...)
			}
			r.append(KindHandRevealed, ev.SeatID, 0, "")
			return
		}
		if ev.Number > 0 {
			r.mulligans = ev.Number
			r.append(KindMulligan, ev.SeatID, 0, "")
		}

	case events.CardDrawn:
		if ev.SeatID == r.seat {
			r.drawOrder = append(r.drawOrder, ev.GrpID)
			r.append(KindCardDrawn, ev.SeatID, ev.GrpID, "")
		}

	case events.CardPlayed:
		if ev.SeatID != r.seat && ev.SeatID != 0 {
			r.oppSeenTurn[r.turn] = append(r.oppSeenTurn[r.turn], ev.GrpID)
		}
		r.append(KindCardPlayed, ev.SeatID, ev.GrpID, ev.ToZone)

	case events.LifeTotalChange:
		r.lifeSeries = append(r.lifeSeries, LifePoint{Game: r.game, Turn: r.turn, Seat: ev.SeatID, Life: ev.Life})
		r.append(KindLifeChange, ev.SeatID, 0, "")

	case events.TurnChange:
		r.turn = ev.Turn
		if !r.onPlayKnown && ev.Turn == 1 {
			r.onPlay = ev.ActiveSeat == r.seat
			r.onPlayKnown = true
		}
		r.append(KindTurnChange, ev.ActiveSeat, 0, "")

	case events.PhaseChange:
		r.phase = ev.Phase
		r.append(KindPhaseChange, 0, 0, ev.Phase)
	}
}

// append adds one action stamped with the current match coordinates.
func (r *Recorder) append(kind string, seat, grpID int, detail string) {
	r.order++
	r.actions = append(r.actions, Action{
		Order:   r.order,
		MatchID: r.matchID,
		Game:    r.game,
		Turn:    r.turn,
		Phase:   r.phase,
		Kind:    kind,
		Seat:    seat,
		GrpID:   grpID,
		Detail:  detail,
		At:      time.Now(),
	})
}

// Flush returns the unflushed actions once FlushTurnGap turns have passed
// since the previous flush, or nil when the gate has not opened yet.
func (r *Recorder) Flush() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.turn-r.lastFlushTurn < FlushTurnGap {
		return nil
	}
	return r.takeUnflushed()
}

// FlushFinal returns all remaining actions plus the match summary. Intended
// for match completion; the gate does not apply.
func (r *Recorder) FlushFinal() ([]Action, *MatchSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	actions := r.takeUnflushed()

	seenByTurn := make(map[int][]int, len(r.oppSeenTurn))
	for turn, ids := range r.oppSeenTurn {
		seenByTurn[turn] = append([]int(nil), ids...)
	}

	summary := &MatchSummary{
		MatchID:            r.matchID,
		Result:             r.result,
		OpeningHand:        append([]int(nil), r.openingHand...),
		MulliganCount:      r.mulligans,
		OnPlay:             r.onPlay,
		LifeProgression:    append([]LifePoint(nil), r.lifeSeries...),
		DrawOrder:          append([]int(nil), r.drawOrder...),
		SideboardDiffs:     append([]SideboardDiff(nil), r.diffs...),
		OpponentSeenByTurn: seenByTurn,
	}
	return actions, summary
}

func (r *Recorder) takeUnflushed() []Action {
	if r.flushed >= len(r.actions) {
		r.lastFlushTurn = r.turn
		return nil
	}
	batch := append([]Action(nil), r.actions[r.flushed:]...)
	r.flushed = len(r.actions)
	r.lastFlushTurn = r.turn
	return batch
}

// diffDecks computes the multiset difference between the pre- and
// post-sideboard decks, split into boarded-in and boarded-out card lists
// expanded per copy.
func diffDecks(pre, post []events.CardQuantity, game int) SideboardDiff {
	preCount := make(map[int]int)
	for _, cq := range pre {
		preCount[cq.GrpID] += cq.Quantity
	}
	postCount := make(map[int]int)
	for _, cq := range post {
		postCount[cq.GrpID] += cq.Quantity
	}

	ids := make(map[int]bool)
	for id := range preCount {
		ids[id] = true
	}
	for id := range postCount {
		ids[id] = true
	}

	var in, out []int
	for id := range ids {
		delta := postCount[id] - preCount[id]
		for i := 0; i < delta; i++ {
			in = append(in, id)
		}
		for i := 0; i < -delta; i++ {
			out = append(out, id)
		}
	}
	sort.Ints(in)
	sort.Ints(out)
	return SideboardDiff{Game: game, BoardedIn: in, BoardedOut: out}
}
