// Command radariq runs the sensor daemon: it owns the serial connection,
// records captured frames to SQLite, and serves the HTTP API.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/radariq/internal/api"
	"github.com/banshee-data/radariq/internal/config"
	"github.com/banshee-data/radariq/internal/db"
	"github.com/banshee-data/radariq/internal/discovery"
	"github.com/banshee-data/radariq/internal/protocol"
	"github.com/banshee-data/radariq/internal/recorder"
	"github.com/banshee-data/radariq/internal/sensor"
	"github.com/banshee-data/radariq/internal/serialmux"
	"github.com/banshee-data/radariq/internal/version"
)

var (
	devMode       = flag.Bool("dev", false, "Replay synthetic frames instead of opening a serial port")
	disableSensor = flag.Bool("disable-sensor", false, "Run the HTTP API without a sensor attached")
	listen        = flag.String("listen", "", "Listen address (overrides config)")
	portPath      = flag.String("port", "", "Serial port path (overrides config; empty auto-detects)")
	dbPath        = flag.String("db", "", "SQLite database path (overrides config)")
	configPath    = flag.String("config", "", "Path to JSON config file")
)

// devPayloads builds a small loop of synthetic point cloud frames so the
// full pipeline can be exercised without hardware.
func devPayloads() [][]byte {
	point := func(x, y, z int16, intensity uint8, velocity int16) []byte {
		row := make([]byte, 9)
		binary.LittleEndian.PutUint16(row[0:], uint16(x))
		binary.LittleEndian.PutUint16(row[2:], uint16(y))
		binary.LittleEndian.PutUint16(row[4:], uint16(z))
		row[6] = intensity
		binary.LittleEndian.PutUint16(row[7:], uint16(velocity))
		return row
	}
	subframe := func(sub protocol.SubframeType, points ...[]byte) []byte {
		p := []byte{byte(protocol.CmdPointCloudData), byte(protocol.VariantResponse), byte(sub), byte(len(points))}
		for _, row := range points {
			p = append(p, row...)
		}
		return p
	}

	var payloads [][]byte
	// A target drifting away from the sensor at about half a metre per
	// second, split into two subframes per frame.
	for i := int16(0); i < 20; i++ {
		y := 2000 + i*50
		payloads = append(payloads,
			subframe(protocol.SubframeStart,
				point(-200, y, 100, 120, -500),
				point(0, y+30, 80, 200, -480)),
			subframe(protocol.SubframeEnd,
				point(250, y-40, 90, 90, -510)),
		)
	}
	return payloads
}

func buildSerialMux(cfg *config.Config) (serialmux.SerialMuxInterface, error) {
	if *disableSensor {
		return serialmux.NewDisabledSerialMux(), nil
	}
	if *devMode {
		return serialmux.NewMockSerialMux(devPayloads()...), nil
	}

	path := *portPath
	if path == "" {
		path = cfg.GetPortPath()
	}
	if path == "" {
		found, err := discovery.FindPort()
		if err != nil {
			return nil, err
		}
		log.Printf("auto-detected sensor at %s", found)
		path = found
	}
	return serialmux.NewRealSerialMux(path, cfg.GetPortOptions())
}

func main() {
	flag.Parse()
	log.Printf("radariq %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	cfg := config.Empty()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	listenAddr := *listen
	if listenAddr == "" {
		listenAddr = cfg.GetListenAddr()
	}
	databasePath := *dbPath
	if databasePath == "" {
		databasePath = cfg.GetDBPath()
	}

	mux, err := buildSerialMux(cfg)
	if err != nil {
		log.Fatalf("failed to open sensor port: %v", err)
	}
	defer mux.Close()

	s, err := sensor.New(mux,
		sensor.WithUnits(cfg.GetUnits()),
		sensor.WithTimeout(cfg.GetCommandTimeout()),
		sensor.WithQueueDepth(cfg.GetQueueDepth()),
	)
	if err != nil {
		log.Fatalf("failed to create sensor: %v", err)
	}
	defer s.Close()

	database, err := db.NewDB(databasePath)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	rec := recorder.New(s, database)

	// Create a wait group for the HTTP server, serial monitor, and recorder
	// routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// drain captured frames into the database
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rec.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("recorder error: %v", err)
		}
		log.Print("recorder routine terminated")
	}()

	// push startup settings to the sensor once the monitor is running
	if patch := cfg.GetSettings(); !patch.Empty() && !*disableSensor && !*devMode {
		if err := s.Apply(patch); err != nil {
			log.Fatalf("failed to apply startup settings: %v", err)
		}
		log.Print("applied startup settings")
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		httpMux := api.NewServer(s, rec, database).ServeMux()

		// mount the admin debugging routes (accessible only in dev mode or
		// over Tailscale)
		mux.AttachAdminRoutes(httpMux)
		database.AttachAdminRoutes(httpMux)

		server := &http.Server{
			Addr:    listenAddr,
			Handler: api.LoggingMiddleware(httpMux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("graceful shutdown complete")
}
