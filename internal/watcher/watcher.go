// Package watcher wires the ingestion pipeline: log tailer, block stream,
// event extraction, game state engine, and telemetry. One watcher owns one
// log file; all event processing happens serially on the tailer's poll
// goroutine.
package watcher

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Karolis332/MTG-deck-builder-sub000/internal/arenalog"
	"github.com/Karolis332/MTG-deck-builder-sub000/internal/cards"
	"github.com/Karolis332/MTG-deck-builder-sub000/internal/events"
	"github.com/Karolis332/MTG-deck-builder-sub000/internal/extractor"
	"github.com/Karolis332/MTG-deck-builder-sub000/internal/gamestate"
	"github.com/Karolis332/MTG-deck-builder-sub000/internal/overlay"
	"github.com/Karolis332/MTG-deck-builder-sub000/internal/telemetry"
)

// FlushHandler receives telemetry batches as they become available. The
// summary is non-nil only on the final flush of a match. Handlers must not
// block: queueing and redelivery are the transport's concern.
type FlushHandler func(batch []telemetry.Action, summary *telemetry.MatchSummary)

// Config configures one watcher.
type Config struct {
	LogPath      string
	PollInterval time.Duration
	Catchup      bool

	Resolver *cards.Resolver // optional, enriches deck lists with card names
	Hub      *overlay.Hub    // optional, receives snapshot/event broadcasts
	OnFlush  FlushHandler    // optional
}

// Watcher runs the ingestion pipeline for one Arena log file.
type Watcher struct {
	cfg Config

	tailer    *arenalog.Tailer
	stream    *arenalog.StreamExtractor
	decodeCtx *extractor.Context
	engine    *gamestate.Engine
	recorder  *telemetry.Recorder

	mu      sync.Mutex
	running bool
}

// New builds a watcher from the config.
func New(cfg Config) *Watcher {
	w := &Watcher{
		cfg:       cfg,
		stream:    arenalog.NewStreamExtractor(),
		decodeCtx: extractor.NewContext(),
		engine:    gamestate.NewEngine(),
		recorder:  telemetry.NewRecorder(),
	}
	w.tailer = arenalog.NewTailer(cfg.LogPath, cfg.PollInterval, cfg.Catchup, w.handleChunk, w.handleReset)

	if cfg.Hub != nil {
		w.engine.Subscribe(func(s gamestate.Snapshot) {
			cfg.Hub.Broadcast("snapshot", s)
		})
	}
	return w
}

// Engine exposes the game state engine for additional subscribers.
func (w *Watcher) Engine() *gamestate.Engine { return w.engine }

// Stats reports decode statistics for the current context lifetime. Safe to
// call while the watcher is running.
func (w *Watcher) Stats() extractor.Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.decodeCtx.Stats
}

// Start begins tailing. Starting a running watcher is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	// The tailer must be started outside the lock: catch-up replay delivers
	// chunks synchronously, which re-enters handleChunk.
	log.Printf("[Watcher] tailing %s", w.cfg.LogPath)
	w.tailer.Start()
}

// Stop halts the tailer and clears all pipeline state. Idempotent; no event
// is processed after Stop returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.tailer.Stop()
}

// handleChunk runs on the tailer goroutine. The watcher mutex is held for the
// whole chunk so Stats readers see a consistent context; Start and Stop
// release it before touching the tailer, so this cannot deadlock against
// them.
func (w *Watcher) handleChunk(chunk string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, block := range w.stream.Append(chunk) {
		for _, ev := range extractor.Extract(block, w.decodeCtx) {
			w.dispatch(ev)
		}
	}
}

func (w *Watcher) dispatch(ev events.GameEvent) {
	w.engine.HandleEvent(ev)
	w.recorder.Record(ev)

	if w.cfg.Hub != nil {
		w.cfg.Hub.Broadcast(string(ev.EventType()), ev)
	}

	switch ev := ev.(type) {
	case events.DeckSubmission:
		w.enrichDeck(ev)
	case events.TurnChange:
		if w.cfg.OnFlush != nil {
			if batch := w.recorder.Flush(); len(batch) > 0 {
				w.cfg.OnFlush(batch, nil)
			}
		}
	case events.MatchComplete:
		if w.cfg.OnFlush != nil {
			batch, summary := w.recorder.FlushFinal()
			w.cfg.OnFlush(batch, summary)
		}
	}
}

// enrichDeck resolves deck grpIds to names off the processing goroutine.
// Name writes are first-write-wins inside the engine, so late results never
// clobber anything.
func (w *Watcher) enrichDeck(deck events.DeckSubmission) {
	if w.cfg.Resolver == nil {
		return
	}

	var ids []int
	for _, list := range [][]events.CardQuantity{deck.Deck, deck.Sideboard, deck.Commander} {
		for _, cq := range list {
			ids = append(ids, cq.GrpID)
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		resolved, err := w.cfg.Resolver.ResolveAll(ctx, ids)
		if err != nil {
			log.Printf("[Watcher] deck enrichment: %v", err)
		}
		for id, card := range resolved {
			w.engine.SetCardName(id, card.Name)
		}
	}()
}

// handleReset clears the stream buffer, decode context, engine, and recorder
// so no state leaks across rotation, truncation, or stop.
func (w *Watcher) handleReset(reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	log.Printf("[Watcher] reset: %s", reason)
	w.stream.Reset()
	w.decodeCtx.Reset()
	w.engine.Reset()
	w.recorder.Reset()
}
