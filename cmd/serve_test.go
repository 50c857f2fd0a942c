package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestAwaitShutdown_DrainsInFlightRequests(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	inHandler := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(inHandler)
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	})}
	go srv.Serve(ln) //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- awaitShutdown(ctx, srv, 2*time.Second) }()

	respCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			errCh <- err
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		respCh <- string(body)
	}()

	<-inHandler
	cancel()

	select {
	case body := <-respCh:
		if body != "ok" {
			t.Errorf("expected in-flight response %q, got %q", "ok", body)
		}
	case err := <-errCh:
		t.Fatalf("in-flight request aborted during shutdown: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("request never completed")
	}

	if err := <-shutdownDone; err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
