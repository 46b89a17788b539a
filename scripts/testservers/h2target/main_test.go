package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/net/http2"
)

func TestHandlerCountsCancelledStreams(t *testing.T) {
	stats := &streamStats{}
	h := newHandler(stats, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}()
	cancel()
	<-done

	if stats.accepted.Load() != 1 || stats.cancelled.Load() != 1 || stats.completed.Load() != 0 {
		t.Fatalf("accepted/cancelled/completed = %d/%d/%d",
			stats.accepted.Load(), stats.cancelled.Load(), stats.completed.Load())
	}
}

func TestHandlerCompletes(t *testing.T) {
	stats := &streamStats{}
	rec := httptest.NewRecorder()
	newHandler(stats, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK || stats.completed.Load() != 1 {
		t.Fatalf("code=%d completed=%d", rec.Code, stats.completed.Load())
	}
}

func TestSelfSignedCertServesH2(t *testing.T) {
	cert, err := selfSignedCert()
	if err != nil {
		t.Fatalf("selfSignedCert() error = %v", err)
	}
	srv := httptest.NewUnstartedServer(newHandler(&streamStats{}, 0))
	srv.TLS = &tls.Config{Certificates: []tls.Certificate{cert}}
	srv.EnableHTTP2 = true
	srv.StartTLS()
	defer srv.Close()

	client := &http.Client{Transport: &http2.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.ProtoMajor != 2 {
		t.Fatalf("proto = %s, want HTTP/2", resp.Proto)
	}
}
