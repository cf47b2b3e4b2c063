// Command viewer-server receives recording streams from sensorlog clients,
// writes each stream to a .sllog recording and catalogs it.
//
// Usage:
//
//	go run ./cmd/tools/viewer-server [flags]
//
// Flags:
//
//	-addr        Listen address (default: localhost:9876)
//	-dir         Recordings directory, empty disables recording (default: recordings)
//	-catalog     Catalog database path, empty disables cataloging (default: recordings/catalog.db)
//	-compression Frame compression, none or zstd (default: zstd)
//	-max-clients Maximum concurrent streams (default: 8)
//	-stats       Stats log interval (default: 10s)
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/banshee-data/sensorlog/internal/catalog"
	"github.com/banshee-data/sensorlog/internal/viewer"
)

func main() {
	cfg := viewer.DefaultConfig()
	addr := flag.String("addr", cfg.ListenAddr, "Listen address")
	dir := flag.String("dir", cfg.RecordingsDir, "Recordings directory (empty disables recording)")
	catalogPath := flag.String("catalog", filepath.Join(cfg.RecordingsDir, "catalog.db"), "Catalog database path (empty disables cataloging)")
	compression := flag.String("compression", cfg.Compression, "Frame compression: none or zstd")
	maxClients := flag.Int("max-clients", cfg.MaxClients, "Maximum concurrent log streams")
	stats := flag.Duration("stats", cfg.StatsInterval, "Stats log interval (0 disables)")
	flag.Parse()

	cfg.ListenAddr = *addr
	cfg.RecordingsDir = *dir
	cfg.Compression = *compression
	cfg.MaxClients = *maxClients
	cfg.StatsInterval = *stats

	var store *catalog.Store
	if *catalogPath != "" {
		if err := os.MkdirAll(filepath.Dir(*catalogPath), 0755); err != nil {
			log.Fatalf("Failed to create catalog directory: %v", err)
		}
		s, err := catalog.Open(*catalogPath)
		if err != nil {
			log.Fatalf("Failed to open catalog: %v", err)
		}
		defer s.Close()
		store = s
	}

	server := viewer.NewServer(cfg, store)
	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start viewer: %v", err)
	}

	log.Printf("Viewer ready on %s, recording to %q", server.Addr(), cfg.RecordingsDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("Shutting down...")
	server.Stop()

	st := server.Stats()
	log.Printf("Received %d messages (%d bytes) in %d recordings", st.Messages, st.Bytes, st.Recordings)
}
