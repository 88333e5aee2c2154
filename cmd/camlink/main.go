// Command camlink receives detection frames from a MaixCam-class sensor over
// a serial link, logs each validated detection to SQLite, and exposes the
// latest one over a small HTTP debug surface.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/camlink-data/camlink/internal/receiver"
	"github.com/camlink-data/camlink/internal/serialport"
	"github.com/camlink-data/camlink/internal/trackdb"
)

var (
	port       = flag.String("port", "/dev/ttyAMA4", "serial device the sensor is attached to")
	baud       = flag.Int("baud", 115200, "serial baud rate")
	dbPath     = flag.String("db", "detections.db", "path to the SQLite detection log")
	poll       = flag.Duration("poll", 100*time.Millisecond, "how often to poll for a fresh detection")
	maxPayload = flag.Int("max-payload", 0, "maximum frame payload size in bytes (0 = protocol default)")
	listen     = flag.String("listen", "localhost:8118", "HTTP debug listen address (empty to disable)")
	debug      = flag.Bool("debug", false, "log per-frame decode trace")
)

func main() {
	flag.Parse()

	rx := receiver.New(receiver.Config{
		Port:       *port,
		Options:    serialport.Options{BaudRate: *baud},
		MaxPayload: *maxPayload,
		Debug:      *debug,
	})
	if err := rx.Start(); err != nil {
		log.Fatalf("failed to start receiver: %v", err)
	}
	defer rx.Stop()

	db, err := trackdb.Open(*dbPath, *port, *baud)
	if err != nil {
		log.Fatalf("failed to open detection log: %v", err)
	}
	defer db.Close()
	log.Printf("receiving on %s at %d baud, session %s", *port, *baud, db.SessionID())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// consumer routine: poll the mailbox and record whatever arrives
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(*poll)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				detection, ok := rx.Latest()
				if !ok {
					continue
				}
				log.Printf("detection: %s", detection)
				if err := db.RecordDetection(detection); err != nil {
					log.Printf("error recording detection: %v", err)
				}
			case <-ctx.Done():
				log.Print("consumer routine terminated")
				return
			}
		}
	}()

	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveDebug(ctx, *listen, rx, db)
		}()
	}

	wg.Wait()
	log.Print("shutdown complete")
}

// serveDebug runs the HTTP debug surface until the context is cancelled.
func serveDebug(ctx context.Context, addr string, rx *receiver.Receiver, db *trackdb.DB) {
	mux := http.NewServeMux()

	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		records, err := db.RecentDetections(1)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if len(records) == 0 {
			w.Write([]byte("null\n"))
			return
		}
		json.NewEncoder(w).Encode(records[0].Detection)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		accepted, rejected := rx.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]uint64{
			"frames_accepted": accepted,
			"frames_rejected": rejected,
		})
	})

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("debug server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("debug server shutdown error: %v", err)
	}
	log.Print("debug server stopped")
}
