// Package gamestate folds the decoded event stream into a live snapshot of
// the match: zones, life totals, deck remaining counters, and draw odds.
package gamestate

import (
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/Karolis332/MTG-deck-builder-sub000/internal/events"
)

// Listener receives an immutable snapshot copy after every processed event.
type Listener func(Snapshot)

// Engine is the match state machine. All event processing is serial; the
// mutex only guards against snapshot reads from other goroutines.
type Engine struct {
	mu sync.Mutex

	snap    Snapshot
	names   map[int]string // grpId -> resolved name, first write wins
	oppSeen map[int]bool
	drawn   []int

	subscribers map[int]Listener
	nextSub     int
}

// NewEngine returns an idle engine.
func NewEngine() *Engine {
	return &Engine{
		names:       make(map[int]string),
		oppSeen:     make(map[int]bool),
		subscribers: make(map[int]Listener),
	}
}

// Subscribe registers a listener and returns an id for Unsubscribe.
func (e *Engine) Subscribe(l Listener) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSub++
	e.subscribers[e.nextSub] = l
	return e.nextSub
}

// Unsubscribe removes a listener. Unknown ids are ignored.
func (e *Engine) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subscribers, id)
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.export()
}

// Reset returns the engine to idle, dropping all match state. Resolved card
// names are kept; they are match-independent.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap = Snapshot{}
	e.oppSeen = make(map[int]bool)
	e.drawn = nil
}

// SetCardName records a resolved card name. A name already present is never
// overwritten, so enrichment can run repeatedly without churn.
func (e *Engine) SetCardName(grpID int, name string) {
	if name == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.names[grpID]; ok {
		return
	}
	e.names[grpID] = name
	fill := func(cards []CardCount) {
		for i := range cards {
			if cards[i].GrpID == grpID && cards[i].Name == "" {
				cards[i].Name = name
			}
		}
	}
	fill(e.snap.Deck)
	fill(e.snap.Sideboard)
}

// HandleEvent folds one event into the state and notifies subscribers.
func (e *Engine) HandleEvent(ev events.GameEvent) {
	e.mu.Lock()

	switch ev := ev.(type) {
	case events.MatchStart:
		e.onMatchStart(ev)
	case events.MatchComplete:
		e.snap.Active = false
		e.snap.Sideboarding = false
		e.snap.Result = ev.Result
	case events.DeckSubmission:
		e.onDeckSubmission(ev)
	case events.Intermission:
		e.onIntermission(ev)
	case events.GameStateUpdate:
		e.rebuildZones(ev)
	case events.MulliganPrompt:
		e.onMulligan(ev)
	case events.CardDrawn:
		if ev.SeatID == e.snap.PlayerSeat {
			e.decrementRemaining(ev.GrpID)
			e.drawn = append(e.drawn, ev.GrpID)
		}
	case events.CardPlayed:
		if ev.SeatID != e.snap.PlayerSeat && ev.SeatID != 0 {
			e.oppSeen[ev.GrpID] = true
		}
	case events.ZoneChange:
		// Any player-owned card leaving the library other than into hand
		// (tutors, ramp, mill) still shrinks the deck; draws are handled by
		// the card_drawn event.
		if ev.SeatID == e.snap.PlayerSeat &&
			ev.FromZone == events.ZoneLibrary && ev.ToZone != events.ZoneHand {
			e.decrementRemaining(ev.GrpID)
		}
	case events.LifeTotalChange:
		if ev.SeatID == e.snap.PlayerSeat {
			e.snap.PlayerLife = ev.Life
		} else if ev.SeatID != 0 {
			e.snap.OpponentLife = ev.Life
		}
	case events.TurnChange:
		e.snap.Turn = ev.Turn
	case events.PhaseChange:
		e.snap.Phase = ev.Phase
		e.snap.Step = ev.Step
	case events.DamageDealt:
		// Life consequences arrive via life_total_change; nothing to fold.
	}

	snapshot := e.export()
	listeners := make([]Listener, 0, len(e.subscribers))
	for _, l := range e.subscribers {
		listeners = append(listeners, l)
	}
	e.mu.Unlock()

	for _, l := range listeners {
		dispatch(l, snapshot)
	}
}

// dispatch isolates listener panics so one bad subscriber cannot break the
// processing loop or starve the others.
func dispatch(l Listener, s Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] listener panic: %v", r)
		}
	}()
	l(s)
}

func (e *Engine) onMatchStart(ev events.MatchStart) {
	life := startingLife(ev.EventName)
	e.snap = Snapshot{
		Active:       true,
		MatchID:      ev.MatchID,
		GameNumber:   1,
		PlayerSeat:   ev.SeatID,
		StartingLife: life,
		PlayerLife:   life,
		OpponentLife: life,
	}
	e.oppSeen = make(map[int]bool)
	e.drawn = nil
}

// startingLife derives the opening life total from the queue name.
func startingLife(eventName string) int {
	name := strings.ToLower(eventName)
	switch {
	case strings.Contains(name, "brawl"):
		return 25
	case strings.Contains(name, "commander"), strings.Contains(name, "edh"):
		return 40
	default:
		return 20
	}
}

func (e *Engine) onDeckSubmission(ev events.DeckSubmission) {
	build := func(list []events.CardQuantity) []CardCount {
		out := make([]CardCount, 0, len(list))
		for _, cq := range list {
			out = append(out, CardCount{
				GrpID:     cq.GrpID,
				Name:      e.names[cq.GrpID],
				Quantity:  cq.Quantity,
				Remaining: cq.Quantity,
			})
		}
		return out
	}
	e.snap.Deck = build(ev.Deck)
	e.snap.Sideboard = build(ev.Sideboard)
	e.snap.LibrarySize = 0
	for _, c := range e.snap.Deck {
		e.snap.LibrarySize += c.Remaining
	}
	e.snap.Sideboarding = false
}

func (e *Engine) onIntermission(ev events.Intermission) {
	e.snap.Sideboarding = true
	e.snap.GameNumber = ev.GameNumber
	e.snap.Hand = nil
	e.snap.Battlefield = nil
	e.snap.Graveyard = nil
	e.snap.Exile = nil
	e.snap.OppBattlefield = nil
	e.snap.OppGraveyard = nil
	e.snap.OppExile = nil
	e.snap.OppHandCount = 0
	e.snap.Turn = 0
	e.snap.Phase = ""
	e.snap.Step = ""
	e.snap.MulliganCount = 0
	e.snap.OpeningHand = nil
	e.drawn = nil

	for i := range e.snap.Deck {
		e.snap.Deck[i].Remaining = e.snap.Deck[i].Quantity
	}
	e.snap.LibrarySize = 0
	for _, c := range e.snap.Deck {
		e.snap.LibrarySize += c.Remaining
	}
	e.snap.PlayerLife = e.snap.StartingLife
	e.snap.OpponentLife = e.snap.StartingLife
}

func (e *Engine) onMulligan(ev events.MulliganPrompt) {
	if ev.Hand != nil {
		e.snap.OpeningHand = append([]int(nil), ev.Hand...)
		return
	}
	if ev.Number > e.snap.MulliganCount {
		e.snap.MulliganCount = ev.Number
	}
}

func (e *Engine) decrementRemaining(grpID int) {
	for i := range e.snap.Deck {
		if e.snap.Deck[i].GrpID == grpID && e.snap.Deck[i].Remaining > 0 {
			e.snap.Deck[i].Remaining--
			if e.snap.LibrarySize > 0 {
				e.snap.LibrarySize--
			}
			return
		}
	}
}

// rebuildZones reconstructs every zone list from the full object table
// rather than patching incrementally, so a missed diff heals on the next
// update.
func (e *Engine) rebuildZones(ev events.GameStateUpdate) {
	e.snap.Hand = nil
	e.snap.Battlefield = nil
	e.snap.Graveyard = nil
	e.snap.Exile = nil
	e.snap.OppBattlefield = nil
	e.snap.OppGraveyard = nil
	e.snap.OppExile = nil
	e.snap.OppHandCount = 0

	for _, o := range ev.Objects {
		card := ZoneCard{InstanceID: o.InstanceID, GrpID: o.GrpID, Name: e.names[o.GrpID]}
		mine := o.OwnerSeat == e.snap.PlayerSeat

		switch o.Zone {
		case events.ZoneHand:
			if mine {
				e.snap.Hand = append(e.snap.Hand, card)
			} else {
				e.snap.OppHandCount++
			}
		case events.ZoneBattlefield:
			if mine {
				e.snap.Battlefield = append(e.snap.Battlefield, card)
			} else {
				e.snap.OppBattlefield = append(e.snap.OppBattlefield, card)
				e.oppSeen[o.GrpID] = true
			}
		case events.ZoneGraveyard:
			if mine {
				e.snap.Graveyard = append(e.snap.Graveyard, card)
			} else {
				e.snap.OppGraveyard = append(e.snap.OppGraveyard, card)
				e.oppSeen[o.GrpID] = true
			}
		case events.ZoneExile:
			if mine {
				e.snap.Exile = append(e.snap.Exile, card)
			} else {
				e.snap.OppExile = append(e.snap.OppExile, card)
			}
		}
	}
}

// export builds the subscriber-facing copy, including derived draw odds.
func (e *Engine) export() Snapshot {
	out := e.snap.clone()
	out.CardsDrawn = append([]int(nil), e.drawn...)

	seen := make([]int, 0, len(e.oppSeen))
	for grp := range e.oppSeen {
		seen = append(seen, grp)
	}
	sort.Ints(seen)
	out.OpponentCardsSeen = seen

	out.DrawProbabilities = make(map[int]float64)
	if out.LibrarySize > 0 {
		for i := range out.Deck {
			if out.Deck[i].Remaining > 0 {
				odds := float64(out.Deck[i].Remaining) / float64(out.LibrarySize)
				out.DrawProbabilities[out.Deck[i].GrpID] = odds
				out.Deck[i].DrawOdds = odds
			}
		}
	}
	return out
}
