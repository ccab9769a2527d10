package sla

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchSLA(t *testing.T) {
	const address = "0x9ff62d1FC52A907B6DCbA8077c2DDCA6E6a9d3e1"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stats/sla/scanner/"+address {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"statistics":{"avg":0.9731,"min":0.95,"max":1.0}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/stats/sla/scanner/", 2*time.Second)
	got, err := client.FetchSLA(context.Background(), address)
	if err != nil {
		t.Fatalf("FetchSLA failed: %v", err)
	}
	if got != 0.9731 {
		t.Errorf("expected 0.9731, got %v", got)
	}
}

func TestFetchSLA_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "scanner not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 2*time.Second)
	if _, err := client.FetchSLA(context.Background(), "0xdead"); err == nil {
		t.Error("expected error on 404")
	}
}

func TestFetchSLA_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 2*time.Second)
	if _, err := client.FetchSLA(context.Background(), "0xdead"); err == nil {
		t.Error("expected error on non-JSON body")
	}
}

func TestFetchSLA_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL+"/", 2*time.Second)
	if _, err := client.FetchSLA(ctx, "0xdead"); err == nil {
		t.Error("expected error on cancelled context")
	}
}
