package jobcard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegistry_GetCreatesOncePerSession(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	a, err := r.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := r.Get(ctx, "s1")
	c, _ := r.Get(ctx, "s2")
	if a != b {
		t.Error("same session should share a controller")
	}
	if a == c {
		t.Error("sessions must not share controllers")
	}
	if a.SessionID() != "s1" {
		t.Errorf("session id = %q", a.SessionID())
	}
	if r.Len() != 2 {
		t.Errorf("len = %d", r.Len())
	}
	if _, err := r.Get(ctx, ""); !errors.Is(err, ErrEmptySession) {
		t.Errorf("err = %v", err)
	}
}

func TestRegistry_Loader(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil, WithLoader(func(_ context.Context, sid string) (*JobCard, error) {
		switch sid {
		case "known":
			return &JobCard{ID: "jc-1", VehicleID: "MH01AB1234", Status: StatusEstimated}, nil
		case "broken":
			return nil, errors.New("neo4j down")
		}
		return nil, nil
	}))

	c, err := r.Get(ctx, "known")
	if err != nil {
		t.Fatal(err)
	}
	jc, ok := c.Current()
	if !ok || jc.ID != "jc-1" || jc.Status != StatusEstimated {
		t.Fatalf("rehydrated = %+v", jc)
	}

	c, err = r.Get(ctx, "broken")
	if err != nil {
		t.Fatalf("loader failure should not fail Get: %v", err)
	}
	if _, ok := c.Current(); ok {
		t.Error("broken session should start empty")
	}
}

func TestRegistry_SweepAndDrop(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(nil, WithTTL(time.Hour), WithRegistryClock(func() time.Time { return now }))

	old, _ := r.Get(ctx, "old")
	old.InitializeJobCard(ctx, hondaCity())
	now = now.Add(50 * time.Minute)
	r.Get(ctx, "fresh")
	now = now.Add(20 * time.Minute)

	if n := r.Sweep(); n != 1 {
		t.Fatalf("swept %d", n)
	}
	if _, ok := r.Lookup("old"); ok {
		t.Error("old session should be evicted")
	}
	if _, ok := r.Lookup("fresh"); !ok {
		t.Error("fresh session should survive")
	}

	fresh, _ := r.Lookup("fresh")
	fresh.InitializeJobCard(ctx, hondaCity())
	if !r.Drop(ctx, "fresh") {
		t.Fatal("Drop should report an existing session")
	}
	if _, ok := fresh.Current(); ok {
		t.Error("Drop should reset the controller")
	}
	if r.Drop(ctx, "fresh") {
		t.Error("second Drop should report false")
	}
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRegistry(nil)
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRegistry_Ownership(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	if _, err := r.GetOwned(ctx, "s1", "user-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetOwned(ctx, "s1", "user-2"); !errors.Is(err, ErrSessionNotOwned) {
		t.Fatalf("other user: err = %v", err)
	}
	if err := r.DropOwned(ctx, "s1", "user-2"); !errors.Is(err, ErrSessionNotOwned) {
		t.Fatalf("other user drop: err = %v", err)
	}
	if r.Len() != 1 {
		t.Fatal("session dropped by other user")
	}
	if err := r.DropOwned(ctx, "s1", "user-1"); err != nil || r.Len() != 0 {
		t.Fatalf("owner drop: %v, len %d", err, r.Len())
	}
}

func TestRegistry_OwnerSurvivesRehydrate(t *testing.T) {
	ctx := context.Background()
	stored := &JobCard{ID: "jc-1", Status: StatusDiagnosed, Owner: "user-1"}
	r := NewRegistry(nil, WithLoader(func(context.Context, string) (*JobCard, error) {
		return stored, nil
	}))
	if _, err := r.GetOwned(ctx, "s1", "user-2"); !errors.Is(err, ErrSessionNotOwned) {
		t.Fatalf("err = %v", err)
	}
	c, err := r.GetOwned(ctx, "s1", "user-1")
	if err != nil {
		t.Fatal(err)
	}
	jc, _ := c.InitializeJobCard(ctx, hondaCity())
	if jc.Owner != "user-1" {
		t.Errorf("new card owner = %q", jc.Owner)
	}
}
