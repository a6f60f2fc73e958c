package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/Karolis332/MTG-deck-builder-sub000/internal/cards"
	"github.com/Karolis332/MTG-deck-builder-sub000/internal/overlay"
	"github.com/Karolis332/MTG-deck-builder-sub000/internal/telemetry"
	"github.com/Karolis332/MTG-deck-builder-sub000/internal/watcher"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded .env")
	}

	logPath := flag.String("log", "", "Path to Arena Player.log (default: auto-detect)")
	catchup := flag.Bool("catchup", envBool("WATCHER_CATCHUP"), "Replay the trailing log window to pick up a match in progress")
	interval := flag.Duration("interval", time.Second, "Poll interval")
	flag.Parse()

	path := *logPath
	if path == "" {
		path = os.Getenv("ARENA_LOG_PATH")
	}
	if path == "" {
		path = defaultLogPath()
	}
	fmt.Printf("Watching: %s\n", path)

	resolver, cleanup := buildResolver()
	defer cleanup()

	var hub *overlay.Hub
	if addr := os.Getenv("OVERLAY_ADDR"); addr != "" {
		hub = overlay.NewHub()
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		go func() {
			log.Printf("[Overlay] listening on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("[Overlay] server stopped: %v", err)
			}
		}()
	}

	w := watcher.New(watcher.Config{
		LogPath:      path,
		PollInterval: *interval,
		Catchup:      *catchup,
		Resolver:     resolver,
		Hub:          hub,
		OnFlush:      printFlush,
	})
	w.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	w.Stop()
	if hub != nil {
		hub.Close()
	}

	stats := w.Stats()
	fmt.Printf("Blocks: %d  Events: %d  Identity misses: %d  Parse errors: %d\n",
		stats.Blocks, stats.Events, stats.IdentityMisses, stats.ParseErrors)
}

// buildResolver assembles the card resolver: sqlite cache always, the
// Postgres catalog only when DATABASE_URL is configured.
func buildResolver() (*cards.Resolver, func()) {
	cachePath := os.Getenv("CARD_CACHE_PATH")
	if cachePath == "" {
		cachePath = cards.DefaultCachePath()
	}

	store, err := cards.NewSQLiteStore(cachePath)
	if err != nil {
		log.Printf("[Main] card cache unavailable: %v", err)
	}

	var catalog cards.Catalog
	var pg *cards.PGCatalog
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err = cards.NewPGCatalog(ctx, dbURL)
		cancel()
		if err != nil {
			log.Printf("[Main] card catalog unavailable: %v", err)
		} else {
			catalog = pg
			fmt.Println("Connected to card catalog")
		}
	}

	var storeTier cards.Store
	if store != nil {
		storeTier = store
	}
	resolver := cards.NewResolver(storeTier, catalog, cards.NewScryfallClient())

	return resolver, func() {
		if store != nil {
			store.Close()
		}
		if pg != nil {
			pg.Close()
		}
	}
}

func printFlush(batch []telemetry.Action, summary *telemetry.MatchSummary) {
	if len(batch) > 0 {
		log.Printf("[Telemetry] flushed %d actions", len(batch))
	}
	if summary != nil {
		log.Printf("[Telemetry] match %s complete: %s, %d mulligans, on play: %v",
			summary.MatchID, summary.Result, summary.MulliganCount, summary.OnPlay)
	}
}

// defaultLogPath returns the stock Arena log location for the platform.
func defaultLogPath() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "LocalLow", "Wizards Of The Coast", "MTGA", "Player.log")
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "Wizards Of The Coast", "MTGA", "Player.log")
	default:
		return filepath.Join(home, ".local", "share", "MTGA", "Player.log")
	}
}

func envBool(key string) bool {
	v := os.Getenv(key)
	return v == "1" || v == "true" || v == "yes"
}
