package app

import (
	"testing"
)

func TestQueue_DropsOldestOnOverflow(t *testing.T) {
	q := NewQueue(2, 0)

	if d := q.Submit(candidate("a", "1", 3)); d != nil {
		t.Fatalf("unexpected drop %s", d.ID)
	}
	q.Submit(candidate("b", "1", 3))

	d := q.Submit(candidate("c", "1", 3))
	if d == nil || d.ID != "a" {
		t.Fatalf("dropped = %v, want a", d)
	}
	if q.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", q.Dropped())
	}

	got := ids(q.Drain(0))
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("Drain() = %v, want [b c]", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after drain", q.Len())
	}
}

func TestQueue_ReadyAtThreshold(t *testing.T) {
	q := NewQueue(10, 2)

	q.Submit(candidate("a", "1", 3))
	select {
	case <-q.Ready():
		t.Fatal("ready below threshold")
	default:
	}

	q.Submit(candidate("b", "1", 3))
	select {
	case <-q.Ready():
	default:
		t.Fatal("not ready at threshold")
	}

	if got := q.Drain(1); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("Drain(1) = %v", ids(got))
	}
}
