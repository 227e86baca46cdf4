// Package api exposes the sensor and its recorded captures over HTTP.
package api

import (
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/radariq/internal/db"
	"github.com/banshee-data/radariq/internal/recorder"
	"github.com/banshee-data/radariq/internal/sensor"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	sensor *sensor.Sensor
	rec    *recorder.Recorder
	db     *db.DB

	// Firmware version and serial number are fixed for the life of the
	// connection, so they are fetched once and cached.
	infoMu  sync.Mutex
	version string
	serial  string
}

func NewServer(s *sensor.Sensor, rec *recorder.Recorder, database *db.DB) *Server {
	return &Server{
		sensor: s,
		rec:    rec,
		db:     database,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/units", s.handleUnits)
	mux.HandleFunc("/api/capture/start", s.startCapture)
	mux.HandleFunc("/api/capture/stop", s.stopCapture)
	mux.HandleFunc("/api/frames/latest", s.latestFrame)
	mux.HandleFunc("/api/sensor_stats", s.showSensorStats)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("GET /api/sessions/{id}/stats", s.sessionStats)
	mux.HandleFunc("GET /api/sessions/{id}/frames", s.sessionFrames)
	mux.HandleFunc("/api/chart/pointcloud", s.pointCloudChart)
	return mux
}

// deviceInfo returns the cached firmware version and serial number,
// querying the sensor on first use.
func (s *Server) deviceInfo() (version, serial string, err error) {
	s.infoMu.Lock()
	defer s.infoMu.Unlock()

	if s.version == "" {
		info, err := s.sensor.Version()
		if err != nil {
			return "", "", err
		}
		s.version = info.Firmware.String()
	}
	if s.serial == "" {
		sn, err := s.sensor.SerialNumber()
		if err != nil {
			return "", "", err
		}
		s.serial = sn
	}
	return s.version, s.serial, nil
}
