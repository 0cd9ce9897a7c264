package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestServeReturnsOnContextCancel(t *testing.T) {
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, server, log.New(io.Discard, "", 0))
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}

func TestServeReturnsListenError(t *testing.T) {
	server := &http.Server{Addr: "127.0.0.1:-1", Handler: http.NotFoundHandler()}
	if err := serve(context.Background(), server, log.New(io.Discard, "", 0)); err == nil {
		t.Fatalf("expected listen error")
	}
}

func TestEventsRouterSplitsSeatingAndLedger(t *testing.T) {
	hit := ""
	ledger := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = "ledger" })
	seating := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = "seating" })
	router := eventsRouter(ledger, seating)

	cases := map[string]string{
		"/api/v1/events/evt-1/imports/seating": "seating",
		"/api/v1/events/evt-1/sections":        "seating",
		"/api/v1/events/evt-1/balances":        "ledger",
		"/api/v1/events/evt-1/reconcile":       "ledger",
	}
	for path, want := range cases {
		hit = ""
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		if hit != want {
			t.Fatalf("%s: routed to %q, want %q", path, hit, want)
		}
	}
}
