package semantic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eka-ai/workshop/engine/domain"
	"github.com/eka-ai/workshop/engine/jobcard"
)

// keywordEmbedder maps text onto four fixed topics.
type keywordEmbedder struct{ err error }

func (k keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	t := strings.ToLower(text)
	v := make([]float32, 4)
	for i, kw := range []string{"brake", "oil", "battery", "clutch"} {
		if strings.Contains(t, kw) {
			v[i] = 1
		}
	}
	v[3] += 0.01
	return v, nil
}

type fakeStore struct {
	upserted []VectorRecord
	deleted  []string
	filters  map[string]string
	topK     int
	results  []SearchResult
	err      error
}

func (f *fakeStore) Upsert(_ context.Context, recs []VectorRecord) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, recs...)
	return nil
}

func (f *fakeStore) DeleteWhere(_ context.Context, key, value string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, key+"="+value)
	return nil
}

func (f *fakeStore) SearchFiltered(_ context.Context, _ []float32, topK int, filters map[string]string) ([]SearchResult, error) {
	f.topK, f.filters = topK, filters
	return f.results, f.err
}

func TestIndexJob(t *testing.T) {
	st := &fakeStore{}
	ix := NewIndex(st, keywordEmbedder{}, nil)
	s := JobSummary{JobCardID: "jc-1", VehicleID: "MH01AB1234", Brand: "Honda", Model: "City", Year: 2020, Diagnosis: "Worn brake pads"}
	if err := ix.IndexJob(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if len(st.upserted) != 1 {
		t.Fatalf("upserted %d", len(st.upserted))
	}
	rec := st.upserted[0]
	if rec.ID != PointID("jc-1") || rec.Payload["job_card_id"] != "jc-1" || rec.Payload["brand"] != "Honda" {
		t.Fatalf("record = %+v", rec)
	}
	if !strings.Contains(rec.Payload["content"].(string), "Worn brake pads") {
		t.Fatalf("content = %v", rec.Payload["content"])
	}
	if PointID("jc-1") != PointID("jc-1") || PointID("jc-1") == PointID("jc-2") {
		t.Fatal("point ids must be stable per card")
	}
}

func TestIndexJob_EmbedError(t *testing.T) {
	ix := NewIndex(&fakeStore{}, keywordEmbedder{err: errors.New("ollama down")}, nil)
	if err := ix.IndexJob(context.Background(), JobSummary{JobCardID: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSimilar(t *testing.T) {
	st := &fakeStore{results: []SearchResult{
		{ID: "p1", Score: 0.91, Content: "Honda City. Diagnosis: pads", Meta: map[string]string{"job_card_id": "jc-1", "vehicle_id": "MH01AB1234", "brand": "Honda", "model": "City"}},
	}}
	ix := NewIndex(st, keywordEmbedder{}, nil)
	got, err := ix.Similar(context.Background(), Query{Text: "squealing brakes", Brand: "maruti"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].JobCardID != "jc-1" || got[0].Score != 0.91 || got[0].Model != "City" {
		t.Fatalf("matches = %+v", got)
	}
	if st.topK != 5 {
		t.Errorf("default limit = %d", st.topK)
	}
	if st.filters["brand"] != "Maruti Suzuki" {
		t.Errorf("brand filter = %v", st.filters)
	}
}

func TestSimilar_Errors(t *testing.T) {
	ix := NewIndex(&fakeStore{}, keywordEmbedder{}, nil)
	if _, err := ix.Similar(context.Background(), Query{Text: "  "}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("err = %v", err)
	}
	ix = NewIndex(&fakeStore{err: errors.New("qdrant down")}, keywordEmbedder{}, nil)
	if _, err := ix.Similar(context.Background(), Query{Text: "brakes"}); err == nil {
		t.Error("expected search error")
	}
	ix = NewIndex(&fakeStore{}, keywordEmbedder{err: errors.New("no model")}, nil)
	if _, err := ix.Similar(context.Background(), Query{Text: "brakes"}); err == nil {
		t.Error("expected embed error")
	}
}

func TestSummaryFromCard(t *testing.T) {
	jc := &jobcard.JobCard{
		ID:        "jc-9",
		VehicleID: "MH01AB1234",
		Status:    jobcard.StatusClosed,
		UpdatedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Vehicle:   domain.VehicleContext{Brand: "Honda", Model: "City", Year: 2020, FuelType: "petrol"},
		Diagnosis: &domain.DiagnosticData{Complaint: "squeal on braking", Summary: "Front pads worn", RecommendedActions: []string{"Replace pads"}},
		Estimate:  &domain.EstimateData{Items: []domain.EstimateItem{{Description: "Brake pad set"}}},
	}
	s := SummaryFromCard(jc)
	text := s.Text()
	for _, want := range []string{"Honda City 2020", "(petrol)", "Complaint: squeal on braking", "Diagnosis: Front pads worn", "Replace pads; Brake pad set"} {
		if !strings.Contains(text, want) {
			t.Errorf("text %q missing %q", text, want)
		}
	}
	if s.Status != "CLOSED" || !s.ClosedAt.Equal(jc.UpdatedAt) {
		t.Errorf("summary = %+v", s)
	}
}

func TestForget(t *testing.T) {
	st := &fakeStore{}
	ix := NewIndex(st, keywordEmbedder{}, nil)
	if err := ix.Forget(context.Background(), "jc-9"); err != nil {
		t.Fatal(err)
	}
	if len(st.deleted) != 1 || st.deleted[0] != "job_card_id=jc-9" {
		t.Fatalf("deleted = %v", st.deleted)
	}
	st.err = errors.New("qdrant down")
	if err := ix.Forget(context.Background(), "jc-9"); err == nil || !strings.Contains(err.Error(), "jc-9") {
		t.Fatalf("err = %v", err)
	}
}
