// Command h2target is a local HTTP/2 server to point rapidreset at. It counts
// the streams it accepts and how many of them the client cancelled.
package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

type serverMode string

const (
	modeTLS serverMode = "tls"
	modeH2C serverMode = "h2c"
)

type streamStats struct {
	accepted  atomic.Int64
	cancelled atomic.Int64
	completed atomic.Int64
}

func main() {
	mode := flag.String("mode", "tls", "Server mode: tls (h2 over TLS) or h2c (cleartext prior knowledge)")
	port := flag.Int("port", 8000, "Listening port")
	hold := flag.Duration("hold", 50*time.Millisecond, "How long each request is held before responding")
	maxStreams := flag.Uint("max-streams", 100, "SETTINGS_MAX_CONCURRENT_STREAMS advertised to clients")
	every := flag.Duration("stats", 5*time.Second, "Interval between stats lines (0 disables)")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}

	stats := &streamStats{}
	handler := newHandler(stats, *hold)
	h2 := &http2.Server{MaxConcurrentStreams: uint32(*maxStreams)}
	addr := fmt.Sprintf("127.0.0.1:%d", *port)

	if *every > 0 {
		go logStats(stats, *every)
	}

	switch serverMode(*mode) {
	case modeTLS:
		log.Fatal(runTLSServer(addr, handler, h2))
	case modeH2C:
		log.Fatal(runH2CServer(addr, handler, h2))
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func newHandler(stats *streamStats, hold time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats.accepted.Add(1)
		timer := time.NewTimer(hold)
		defer timer.Stop()
		select {
		case <-r.Context().Done():
			stats.cancelled.Add(1)
			return
		case <-timer.C:
		}
		stats.completed.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "ok %s\n", r.Proto)
	})
}

func logStats(stats *streamStats, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		log.Printf("streams accepted=%d cancelled=%d completed=%d",
			stats.accepted.Load(), stats.cancelled.Load(), stats.completed.Load())
	}
}

func runTLSServer(addr string, handler http.Handler, h2 *http2.Server) error {
	cert, err := selfSignedCert()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         &tls.Config{Certificates: []tls.Certificate{cert}},
	}
	if err := http2.ConfigureServer(srv, h2); err != nil {
		return err
	}
	log.Printf("h2 target listening on https://%s", addr)
	return srv.ListenAndServeTLS("", "")
}

func runH2CServer(addr string, handler http.Handler, h2 *http2.Server) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(handler, h2),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("h2c target listening on http://%s", addr)
	return srv.ListenAndServe()
}

// selfSignedCert returns a throwaway certificate for localhost. Clients must
// skip verification, which rapidreset does by default.
func selfSignedCert() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("serial: %w", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}
