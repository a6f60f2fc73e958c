package arenalog

import (
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const (
	// DefaultPollInterval is how often the log file is re-stated for growth.
	DefaultPollInterval = 1 * time.Second

	// CatchupWindow bounds how far back a catch-up read reaches, so startup
	// latency stays fixed even against a multi-gigabyte log.
	CatchupWindow = 5 * 1024 * 1024
)

// Reset reasons passed to the ResetHandler.
const (
	ResetRotation   = "rotation"
	ResetTruncation = "truncation"
	ResetStop       = "stop"
)

// ChunkHandler receives each newly appended byte range, decoded as UTF-8.
type ChunkHandler func(chunk string)

// ResetHandler is called when downstream buffers and decode context must be
// cleared: the file was rotated, truncated, or the tailer was stopped.
type ResetHandler func(reason string)

// Tailer polls an append-only log file for growth, tracking offset and file
// identity so rotation and truncation are detected and reported.
type Tailer struct {
	path     string
	interval time.Duration
	catchup  bool

	onChunk ChunkHandler
	onReset ResetHandler

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	offset  int64
	info    os.FileInfo // identity of the file we are tailing, nil before first sight
}

// NewTailer creates a tailer for path. In catch-up mode the trailing
// CatchupWindow bytes are replayed on start so a match already in progress
// can be reconstructed.
func NewTailer(path string, interval time.Duration, catchup bool, onChunk ChunkHandler, onReset ResetHandler) *Tailer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Tailer{
		path:     path,
		interval: interval,
		catchup:  catchup,
		onChunk:  onChunk,
		onReset:  onReset,
	}
}

// Start begins polling. Calling Start on a running tailer is a no-op.
func (t *Tailer) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.mu.Unlock()

	t.prime()

	go t.loop()
}

// Stop halts polling and clears all position state. It is idempotent, and no
// chunk is delivered after Stop returns.
func (t *Tailer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stop)
	done := t.done
	t.mu.Unlock()

	<-done

	t.mu.Lock()
	t.offset = 0
	t.info = nil
	t.mu.Unlock()

	if t.onReset != nil {
		t.onReset(ResetStop)
	}
}

// Offset reports the current read position, for diagnostics.
func (t *Tailer) Offset() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offset
}

// prime establishes the starting position: end of file normally, or the
// trailing catch-up window replayed through the chunk handler.
func (t *Tailer) prime() {
	fi, err := os.Stat(t.path)
	if err != nil {
		// Arena may simply not be running yet.
		return
	}

	t.mu.Lock()
	t.info = fi
	t.offset = fi.Size()
	t.mu.Unlock()

	if !t.catchup || fi.Size() == 0 {
		return
	}

	start := fi.Size() - CatchupWindow
	if start < 0 {
		start = 0
	}
	chunk, err := t.readRange(start, fi.Size())
	if err != nil {
		log.Printf("[Tailer] catch-up read failed: %v", err)
		return
	}
	if t.onChunk != nil && len(chunk) > 0 {
		t.onChunk(chunk)
	}
}

func (t *Tailer) loop() {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.Poll()
		}
	}
}

// Poll performs one tick of the poll cycle. Exported so callers and tests can
// drive the tailer without waiting on the timer.
func (t *Tailer) Poll() {
	fi, err := os.Stat(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Tailer] stat %s: %v", t.path, err)
		}
		return
	}

	t.mu.Lock()
	last := t.info
	offset := t.offset
	t.mu.Unlock()

	reset := ""
	switch {
	case last == nil:
		// First time the file appears: read it from the start.
		offset = 0
	case !os.SameFile(last, fi):
		reset = ResetRotation
		offset = 0
	case fi.Size() < offset:
		reset = ResetTruncation
		offset = 0
	}

	if reset != "" && t.onReset != nil {
		log.Printf("[Tailer] %s detected, re-reading from start", reset)
		t.onReset(reset)
	}

	if fi.Size() <= offset {
		t.mu.Lock()
		t.info = fi
		t.offset = offset
		t.mu.Unlock()
		return
	}

	chunk, err := t.readRange(offset, fi.Size())
	if err != nil {
		log.Printf("[Tailer] read %s: %v", t.path, err)
		return
	}

	t.mu.Lock()
	t.info = fi
	t.offset = offset + int64(len(chunk))
	t.mu.Unlock()

	if t.onChunk != nil && len(chunk) > 0 {
		t.onChunk(chunk)
	}
}

// readRange reads exactly the bytes [from, to) of the file.
func (t *Tailer) readRange(from, to int64) (string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Seek(from, io.SeekStart); err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(f, to-from))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
