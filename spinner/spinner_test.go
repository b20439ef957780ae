package spinner

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
)

func TestQueueOverflowDropsOldest(t *testing.T) {
	defer leaktest.Check(t)()

	s := New(1000) // fast tick so the test doesn't wait long
	defer s.Close()

	got := make(chan [][]byte, 4)
	s.Register("sub1", 2, 1000, func(batch [][]byte) { got <- batch })

	for _, v := range []string{"1", "2", "3", "4"} {
		s.Push("sub1", []byte(v))
	}

	select {
	case batch := <-got:
		want := [][]byte{[]byte("3"), []byte("4")}
		if !cmp.Equal(batch, want) {
			t.Fatalf("got %v, want %v", batch, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestOrderingPreservedWithinClient(t *testing.T) {
	defer leaktest.Check(t)()

	s := New(1000)
	defer s.Close()

	got := make(chan [][]byte, 1)
	s.Register("c1", 10, 0, func(batch [][]byte) { got <- batch })

	for _, v := range []string{"a", "b", "c"} {
		s.Push("c1", []byte(v))
	}

	select {
	case batch := <-got:
		want := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
		if !cmp.Equal(batch, want) {
			t.Fatalf("got %v, want %v", batch, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestDeregisterDiscardsQueue(t *testing.T) {
	defer leaktest.Check(t)()

	s := New(1000)
	defer s.Close()

	called := make(chan struct{}, 1)
	s.Register("c1", 10, 0, func(batch [][]byte) { called <- struct{}{} })
	s.Push("c1", []byte("x"))
	s.Deregister("c1")

	select {
	case <-called:
		t.Fatal("deliverer was called after deregistration")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseStopsTickGoroutine(t *testing.T) {
	defer leaktest.Check(t)()

	s := New(1000)
	s.Register("c1", 10, 0, func(batch [][]byte) {})
	s.Push("c1", []byte("x"))
	s.Close()
}
