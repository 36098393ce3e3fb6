package recognizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPredictSkipMode(t *testing.T) {
	c := New("http://unused", true)
	pred, err := c.Predict(context.Background(), "frames/abc.jpg")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.Label != 0 {
		t.Errorf("label = %d, want 0", pred.Label)
	}
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health in skip mode: %v", err)
	}
}

func TestPredictAgainstService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			http.NotFound(w, r)
			return
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req["image"] == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(Prediction{Label: 3, Confidence: 42.5})
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	pred, err := c.Predict(context.Background(), "frames/abc.jpg")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.Label != 3 || pred.Confidence != 42.5 {
		t.Errorf("got %+v, want label 3 confidence 42.5", pred)
	}
}

func TestPredictErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no face detected", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	if _, err := c.Predict(context.Background(), "frames/abc.jpg"); err == nil {
		t.Error("non-2xx response should error")
	}
	if _, err := c.Predict(context.Background(), ""); err == nil {
		t.Error("empty image reference should error")
	}
}

func TestHealthAgainstService(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	if err := New(healthy.URL, false).Health(context.Background()); err != nil {
		t.Errorf("Health on healthy service: %v", err)
	}

	sick := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer sick.Close()
	if err := New(sick.URL, false).Health(context.Background()); err == nil {
		t.Error("Health on failing service should error")
	}
}
