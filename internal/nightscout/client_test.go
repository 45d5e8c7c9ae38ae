package nightscout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pumpsync/internal/errs"
	"pumpsync/internal/model"
)

func sampleRecords() []model.TreatmentRecord {
	return []model.TreatmentRecord{
		{
			ID:        "11111111-2222-5333-8444-555555555555",
			Type:      model.TreatmentProfileSwitch,
			Time:      time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
			Profile:   "Profile A",
			EnteredBy: "pumpsync",
		},
		{
			ID:        "66666666-7777-5888-9999-000000000000",
			Type:      model.TreatmentIndication,
			Time:      time.Date(2026, 8, 30, 10, 5, 0, 0, time.UTC),
			Notes:     `{"Key":"IndicationUnknown"}`,
			EnteredBy: "pumpsync",
		},
	}
}

func TestSubmitTreatments_OK(t *testing.T) {
	t.Parallel()

	var got []treatment
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/treatments" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		// sha1("secret"), fixed by the legacy Nightscout auth scheme.
		if h := r.Header.Get("API-SECRET"); h != "e5e9fa1ba31ecd1ae84f75caaa474f3a663f05f4" {
			t.Errorf("API-SECRET=%q", h)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	if err := c.SubmitTreatments(context.Background(), sampleRecords()); err != nil {
		t.Fatalf("SubmitTreatments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("server received %d treatments, want 2", len(got))
	}
	if got[0].EventType != "Profile Switch" || got[0].Profile != "Profile A" {
		t.Fatalf("first treatment: %+v", got[0])
	}
	if got[1].EventType != "Announcement" {
		t.Fatalf("second treatment: %+v", got[1])
	}
}

func TestSubmitTreatments_EmptyBatchSkipsCall(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for an empty batch")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	if err := c.SubmitTreatments(context.Background(), nil); err != nil {
		t.Fatalf("SubmitTreatments(nil): %v", err)
	}
}

func TestSubmitTreatments_NonSuccessIsSubmissionError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "wrong")
	err := c.SubmitTreatments(context.Background(), sampleRecords())
	if !errors.Is(err, errs.ErrSubmission) {
		t.Fatalf("want ErrSubmission, got %v", err)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			t.Errorf("path=%s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "").Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
