package looptrack

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMarkThenIsMarked(t *testing.T) {
	tr := New(0, 0)
	tr.Mark("7")

	if !tr.IsMarked("7") {
		t.Fatal("expected id to be marked")
	}
	if tr.IsMarked("8") {
		t.Fatal("unrelated id must not be marked")
	}
}

func TestClearThenNotMarked(t *testing.T) {
	tr := New(0, 0)
	tr.Mark("7")
	tr.Clear("7")

	if tr.IsMarked("7") {
		t.Fatal("expected mark to be cleared")
	}
	// Idempotent.
	tr.Clear("7")
	tr.Clear("never-marked")
	if tr.Len() != 0 {
		t.Fatalf("expected empty tracker, got %d", tr.Len())
	}
}

func TestMarkIsIdempotent(t *testing.T) {
	tr := New(0, 0)
	tr.Mark("7")
	_, first, _ := tr.Oldest()
	time.Sleep(5 * time.Millisecond)
	tr.Mark("7")
	_, second, _ := tr.Oldest()

	if !first.Equal(second) {
		t.Error("re-marking must not refresh the entry")
	}
	if tr.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", tr.Len())
	}
}

func TestOldestSkipsClearedAndExpired(t *testing.T) {
	tr := New(0, 20*time.Millisecond)
	if _, _, ok := tr.Oldest(); ok {
		t.Fatal("empty tracker has no oldest mark")
	}

	tr.Mark("1")
	tr.Mark("2")
	if id, _, ok := tr.Oldest(); !ok || id != "1" {
		t.Fatalf("expected 1, got %q ok=%v", id, ok)
	}

	// Re-marking must not reorder.
	tr.Mark("1")
	tr.Clear("1")
	if id, _, ok := tr.Oldest(); !ok || id != "2" {
		t.Fatalf("expected 2 after clearing 1, got %q ok=%v", id, ok)
	}

	time.Sleep(40 * time.Millisecond)
	if id, _, ok := tr.Oldest(); ok {
		t.Fatalf("expired mark %q must not be reported", id)
	}
}

func TestTakeConsumesOnce(t *testing.T) {
	tr := New(0, 0)
	tr.Mark("7")

	if !tr.Take("7") {
		t.Fatal("first Take must observe the mark")
	}
	if tr.Take("7") {
		t.Fatal("second Take must not observe the mark")
	}
	if tr.IsMarked("7") {
		t.Fatal("Take must remove the mark")
	}
}

func TestTakeExactlyOnceUnderConcurrency(t *testing.T) {
	tr := New(0, 0)
	tr.Mark("loop")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.Take("loop") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one consumer, got %d", wins.Load())
	}
}

func TestSizeCapEvictsOldest(t *testing.T) {
	tr := New(3, time.Minute)
	for i := 0; i < 5; i++ {
		tr.Mark(strconv.Itoa(i))
	}

	if tr.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", tr.Len())
	}
	if tr.IsMarked("0") || tr.IsMarked("1") {
		t.Error("expected oldest entries to be evicted")
	}
	if !tr.IsMarked("4") {
		t.Error("expected newest entry to survive")
	}
}

func TestEntriesExpire(t *testing.T) {
	tr := New(10, 50*time.Millisecond)
	tr.Mark("abandoned")

	time.Sleep(150 * time.Millisecond)

	if tr.IsMarked("abandoned") {
		t.Fatal("expected mark to expire")
	}
	if tr.Take("abandoned") {
		t.Fatal("expired mark must not be consumable")
	}
}
