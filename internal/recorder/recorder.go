// Package recorder drains the sensor's frame queue, keeps the most recent
// frame available for the API, and persists frames to the database while a
// session is open.
package recorder

import (
	"context"
	"sync"

	"github.com/banshee-data/radariq/internal/db"
	"github.com/banshee-data/radariq/internal/monitoring"
	"github.com/banshee-data/radariq/internal/sensor"
)

// Recorder consumes frames from a sensor. Frames arriving while no session
// is open are still cached as the latest frame but not persisted.
type Recorder struct {
	sensor *sensor.Sensor
	db     *db.DB

	mu      sync.Mutex
	session *db.Session
	latest  *sensor.Frame
}

func New(s *sensor.Sensor, database *db.DB) *Recorder {
	return &Recorder{sensor: s, db: database}
}

// Begin opens a recording session for the given capture mode. Any session
// already open is ended first.
func (r *Recorder) Begin(serialNumber string, mode sensor.CaptureMode, units sensor.UnitSettings) (db.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		if err := r.db.EndSession(r.session.ID); err != nil {
			monitoring.Logf("recorder: ending stale session %s: %v", r.session.ID, err)
		}
		r.session = nil
	}

	session, err := r.db.StartSession(serialNumber, mode, units)
	if err != nil {
		return db.Session{}, err
	}
	r.session = &session
	return session, nil
}

// End closes the open recording session, if any.
func (r *Recorder) End() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil
	}
	err := r.db.EndSession(r.session.ID)
	r.session = nil
	return err
}

// Session returns the open session, if any.
func (r *Recorder) Session() (db.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return db.Session{}, false
	}
	return *r.session, true
}

// Latest returns the most recent frame seen, whether or not it was
// persisted.
func (r *Recorder) Latest() (sensor.Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return sensor.Frame{}, false
	}
	return *r.latest, true
}

// Run consumes frames until the context is cancelled. It is intended to
// run as a daemon goroutine alongside the serial monitor.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-r.sensor.Frames():
			r.handle(frame)
		}
	}
}

func (r *Recorder) handle(frame sensor.Frame) {
	r.mu.Lock()
	r.latest = &frame
	session := r.session
	r.mu.Unlock()

	if session == nil {
		return
	}
	if _, err := r.db.RecordFrame(session.ID, frame); err != nil {
		monitoring.Logf("recorder: recording frame %d: %v", frame.Number, err)
	}
}
