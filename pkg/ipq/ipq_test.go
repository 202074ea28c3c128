package ipq

import (
	"math/rand"
	"testing"
)

type item struct{ name string }

func TestNewBuildsHeapInvariant(t *testing.T) {
	items := []*item{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}}
	keys := []float64{5, 3, 4, 1, 2}
	q, err := New(items, keys)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	it, k, err := q.Peek()
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if k != 1 || it != items[3] {
		t.Fatalf("expected min key 1 for items[3], got key=%v item=%v", k, it)
	}
}

func TestNewRejectsDuplicateItem(t *testing.T) {
	it := &item{"a"}
	_, err := New([]*item{it, it}, []float64{1, 2})
	if err == nil {
		t.Fatalf("expected error on duplicate item")
	}
}

func TestAddRejectsExisting(t *testing.T) {
	q := Empty[*item]()
	it := &item{"a"}
	if err := q.Add(it, 1.0); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := q.Add(it, 2.0); err == nil {
		t.Fatalf("expected error re-adding existing item")
	}
}

func TestPeekEmpty(t *testing.T) {
	q := Empty[*item]()
	if _, _, err := q.Peek(); err == nil {
		t.Fatalf("expected error peeking empty queue")
	}
}

func TestUpdateKeyReordersHeap(t *testing.T) {
	a, b, c := &item{"a"}, &item{"b"}, &item{"c"}
	q, _ := New([]*item{a, b, c}, []float64{1, 2, 3})

	if err := q.UpdateKey(c, 0); err != nil {
		t.Fatalf("UpdateKey: %v", err)
	}
	it, k, _ := q.Peek()
	if it != c || k != 0 {
		t.Fatalf("expected c with key 0 at top, got %v/%v", it, k)
	}

	if err := q.UpdateKey(c, 10); err != nil {
		t.Fatalf("UpdateKey: %v", err)
	}
	it, k, _ = q.Peek()
	if it != a || k != 1 {
		t.Fatalf("expected a with key 1 at top, got %v/%v", it, k)
	}
}

func TestReplaceItemPreservesSlotAndKey(t *testing.T) {
	a, b := &item{"a"}, &item{"b"}
	q, _ := New([]*item{a, b}, []float64{1, 2})

	newA := &item{"a2"}
	if err := q.ReplaceItem(a, newA, nil); err != nil {
		t.Fatalf("ReplaceItem: %v", err)
	}
	if q.Contains(a) {
		t.Fatalf("old item should no longer be present")
	}
	if k, err := q.Key(newA); err != nil || k != 1 {
		t.Fatalf("expected replaced item to keep key 1, got %v, err=%v", k, err)
	}

	newKey := 42.0
	if err := q.ReplaceItem(newA, a, &newKey); err != nil {
		t.Fatalf("ReplaceItem with key: %v", err)
	}
	if k, _ := q.Key(a); k != 42.0 {
		t.Fatalf("expected updated key 42, got %v", k)
	}
}

func TestRemoveRestoresMin(t *testing.T) {
	a, b, c := &item{"a"}, &item{"b"}, &item{"c"}
	q, _ := New([]*item{a, b, c}, []float64{3, 1, 2})

	if err := q.Remove(b); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	it, k, _ := q.Peek()
	if it != c || k != 2 {
		t.Fatalf("expected c with key 2 after removing min, got %v/%v", it, k)
	}
	if q.Contains(b) {
		t.Fatalf("b should be gone")
	}
}

func TestAddThenRemoveRestoresObservableState(t *testing.T) {
	a, b := &item{"a"}, &item{"b"}
	q, _ := New([]*item{a, b}, []float64{1, 2})
	beforeItem, beforeKey, _ := q.Peek()

	extra := &item{"extra"}
	if err := q.Add(extra, 0.5); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := q.Remove(extra); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	afterItem, afterKey, _ := q.Peek()
	if afterItem != beforeItem || afterKey != beforeKey {
		t.Fatalf("expected min to be restored: before=%v/%v after=%v/%v", beforeItem, beforeKey, afterItem, afterKey)
	}
}

// TestPopSequenceIsNonDecreasing mirrors the spec's seed test 2: build an
// IPQ over 50 items with random keys, perform a handful of key updates, then
// pop repeatedly via Peek+Remove and assert the popped key sequence never
// decreases.
func TestPopSequenceIsNonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const n = 50
	items := make([]*item, n)
	keys := make([]float64, n)
	for i := range items {
		items[i] = &item{name: "x"}
		keys[i] = rng.Float64() * 10
	}
	q, err := New(items, keys)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 5; i++ {
		target := items[rng.Intn(n)]
		if err := q.UpdateKey(target, rng.Float64()*10); err != nil {
			t.Fatalf("UpdateKey: %v", err)
		}
	}

	last := -1.0
	for q.Len() > 0 {
		it, k, err := q.Peek()
		if err != nil {
			t.Fatalf("Peek: %v", err)
		}
		if k < last {
			t.Fatalf("pop sequence decreased: %v < %v", k, last)
		}
		last = k
		if err := q.Remove(it); err != nil {
			t.Fatalf("Remove: %v", err)
		}
	}
}
