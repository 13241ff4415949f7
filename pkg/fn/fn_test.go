package fn

import (
	"context"
	"errors"
	"testing"
)

func TestResultOkAndErr(t *testing.T) {
	r := Ok(3)
	if r.IsErr() {
		t.Fatal("expected ok result")
	}
	v, err := r.Unwrap()
	if v != 3 || err != nil {
		t.Fatalf("got (%d, %v)", v, err)
	}

	e := Err[int](errors.New("boom"))
	if !e.IsErr() {
		t.Fatal("expected error result")
	}
}

func TestFromPair(t *testing.T) {
	if v, err := FromPair("abc", nil).Unwrap(); v != "abc" || err != nil {
		t.Fatalf("got (%q, %v)", v, err)
	}
	if !FromPair("", errors.New("x")).IsErr() {
		t.Fatal("expected error to propagate")
	}
}

func TestFilterNeverNil(t *testing.T) {
	out := Filter([]int{1, 2, 3}, func(int) bool { return false })
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", out)
	}
	even := Filter([]int{1, 2, 3, 4}, func(n int) bool { return n%2 == 0 })
	if len(even) != 2 || even[0] != 2 || even[1] != 4 {
		t.Fatalf("got %v", even)
	}
}

func TestMap(t *testing.T) {
	sq := Map([]int{1, 2, 3}, func(n int) int { return n * n })
	if len(sq) != 3 || sq[2] != 9 {
		t.Fatalf("got %v", sq)
	}
}

func TestThenShortCircuits(t *testing.T) {
	called := false
	first := Stage[int, int](func(context.Context, int) Result[int] { return Err[int](errors.New("stop")) })
	second := Stage[int, string](func(context.Context, int) Result[string] {
		called = true
		return Ok("never")
	})
	r := Then(first, second)(context.Background(), 1)
	if !r.IsErr() || called {
		t.Fatal("second stage must not run after a failure")
	}
}

func TestTracedStagePassesThrough(t *testing.T) {
	double := TracedStage("double", MapStage(func(n int) int { return n * 2 }))
	v, err := double(context.Background(), 21).Unwrap()
	if err != nil || v != 42 {
		t.Fatalf("got (%d, %v)", v, err)
	}
}
