package arenalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type tailRecorder struct {
	chunks []string
	resets []string
}

func (r *tailRecorder) onChunk(c string) { r.chunks = append(r.chunks, c) }
func (r *tailRecorder) onReset(s string) { r.resets = append(r.resets, s) }

func (r *tailRecorder) total() string { return strings.Join(r.chunks, "") }

func newTestTailer(t *testing.T, path string, catchup bool) (*Tailer, *tailRecorder) {
	t.Helper()
	rec := &tailRecorder{}
	// A long interval keeps the background ticker quiet; tests drive Poll.
	tailer := NewTailer(path, time.Hour, catchup, rec.onChunk, rec.onReset)
	return tailer, rec
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
}

func TestTailerDeliversOnlyNewBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Player.log")
	writeFile(t, path, "already there\n")

	tailer, rec := newTestTailer(t, path, false)
	tailer.Start()
	defer tailer.Stop()

	tailer.Poll()
	if len(rec.chunks) != 0 {
		t.Fatalf("existing content delivered in normal mode: %q", rec.chunks)
	}

	appendFile(t, path, "new line\n")
	tailer.Poll()
	if rec.total() != "new line\n" {
		t.Fatalf("got %q, want %q", rec.total(), "new line\n")
	}

	appendFile(t, path, "another\n")
	tailer.Poll()
	if rec.total() != "new line\nanother\n" {
		t.Fatalf("got %q", rec.total())
	}
}

func TestTailerCatchupReplaysTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Player.log")
	writeFile(t, path, "history\n")

	tailer, rec := newTestTailer(t, path, true)
	tailer.Start()
	defer tailer.Stop()

	if rec.total() != "history\n" {
		t.Fatalf("catch-up delivered %q, want %q", rec.total(), "history\n")
	}

	appendFile(t, path, "live\n")
	tailer.Poll()
	if rec.total() != "history\nlive\n" {
		t.Fatalf("got %q", rec.total())
	}
}

func TestTailerCatchupIsBoundedByWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Player.log")

	// A file larger than the window: only the trailing window may replay.
	overflow := 4096
	content := strings.Repeat("x", overflow) + strings.Repeat("y", CatchupWindow)
	writeFile(t, path, content)

	tailer, rec := newTestTailer(t, path, true)
	tailer.Start()
	defer tailer.Stop()

	if got := rec.total(); len(got) != CatchupWindow {
		t.Fatalf("catch-up delivered %d bytes, want %d", len(got), CatchupWindow)
	}
	if got := rec.total(); got != content[overflow:] {
		t.Fatal("catch-up did not deliver the trailing window")
	}

	// The replay primed the offset at end-of-file: the next poll delivers
	// only fresh appends, never re-reads the window.
	rec.chunks = nil
	appendFile(t, path, "live\n")
	tailer.Poll()
	if rec.total() != "live\n" {
		t.Fatalf("got %q after catch-up, want only the new bytes", rec.total())
	}
}

func TestTailerTruncationResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Player.log")
	writeFile(t, path, "a long first session\n")

	tailer, rec := newTestTailer(t, path, false)
	tailer.Start()
	defer tailer.Stop()

	writeFile(t, path, "short\n") // smaller than the prior offset
	tailer.Poll()

	if len(rec.resets) != 1 || rec.resets[0] != ResetTruncation {
		t.Fatalf("resets = %v, want [%s]", rec.resets, ResetTruncation)
	}
	if rec.total() != "short\n" {
		t.Fatalf("got %q, want re-read from start", rec.total())
	}
}

func TestTailerRotationResets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Player.log")
	writeFile(t, path, "old file contents here\n")

	tailer, rec := newTestTailer(t, path, false)
	tailer.Start()
	defer tailer.Stop()

	// Create the replacement first so it cannot reuse the old inode, then
	// rename it into place.
	next := filepath.Join(dir, "Player.log.next")
	writeFile(t, next, "fresh\n")
	if err := os.Rename(next, path); err != nil {
		t.Fatal(err)
	}
	tailer.Poll()

	if len(rec.resets) != 1 || rec.resets[0] != ResetRotation {
		t.Fatalf("resets = %v, want [%s]", rec.resets, ResetRotation)
	}
	if rec.total() != "fresh\n" {
		t.Fatalf("got %q, want the rotated file from offset 0", rec.total())
	}
}

func TestTailerMissingFileIsSilent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Player.log")

	tailer, rec := newTestTailer(t, path, false)
	tailer.Start()
	defer tailer.Stop()

	tailer.Poll() // no file yet; host app not running
	if len(rec.chunks) != 0 || len(rec.resets) != 0 {
		t.Fatalf("missing file produced output: chunks=%v resets=%v", rec.chunks, rec.resets)
	}

	writeFile(t, path, "hello\n")
	tailer.Poll()
	if rec.total() != "hello\n" {
		t.Fatalf("got %q, want full read once the file appears", rec.total())
	}
}

func TestTailerStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Player.log")
	writeFile(t, path, "data\n")

	tailer, rec := newTestTailer(t, path, false)
	tailer.Start()
	tailer.Stop()
	tailer.Stop()

	if tailer.Offset() != 0 {
		t.Errorf("offset = %d after stop, want 0", tailer.Offset())
	}
	if len(rec.resets) != 1 || rec.resets[0] != ResetStop {
		t.Errorf("resets = %v, want one %s", rec.resets, ResetStop)
	}
}
