package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/radariq/internal/sensor"
)

var ErrSessionNotFound = errors.New("session not found")

// Session groups the frames recorded between one capture start and stop.
type Session struct {
	ID           string     `json:"session_id"`
	SerialNumber string     `json:"serial_number"`
	Mode         string     `json:"mode"`
	DistanceUnit string     `json:"distance_unit"`
	SpeedUnit    string     `json:"speed_unit"`
	Started      time.Time  `json:"started"`
	Ended        *time.Time `json:"ended,omitempty"`
}

// StartSession records the beginning of a capture and returns the new
// session. The units are stored alongside so recorded values can be
// interpreted later.
func (db *DB) StartSession(serialNumber string, mode sensor.CaptureMode, units sensor.UnitSettings) (Session, error) {
	s := Session{
		ID:           uuid.NewString(),
		SerialNumber: serialNumber,
		Mode:         mode.String(),
		DistanceUnit: units.Distance,
		SpeedUnit:    units.Speed,
		Started:      time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO sessions (session_id, serial_number, mode, distance_unit, speed_unit, started)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.SerialNumber, s.Mode, s.DistanceUnit, s.SpeedUnit, s.Started,
	)
	if err != nil {
		return Session{}, fmt.Errorf("starting session: %w", err)
	}
	return s, nil
}

// EndSession marks the session as finished.
func (db *DB) EndSession(id string) error {
	res, err := db.Exec(`UPDATE sessions SET ended = ? WHERE session_id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Session returns a single session by ID.
func (db *DB) Session(id string) (Session, error) {
	row := db.QueryRow(
		`SELECT session_id, serial_number, mode, distance_unit, speed_unit, started, ended
		 FROM sessions WHERE session_id = ?`, id)

	var s Session
	var ended sql.NullTime
	if err := row.Scan(&s.ID, &s.SerialNumber, &s.Mode, &s.DistanceUnit, &s.SpeedUnit, &s.Started, &ended); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	if ended.Valid {
		s.Ended = &ended.Time
	}
	return s, nil
}

// Sessions returns the most recent sessions, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT session_id, serial_number, mode, distance_unit, speed_unit, started, ended
		 FROM sessions ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var ended sql.NullTime
		if err := rows.Scan(&s.ID, &s.SerialNumber, &s.Mode, &s.DistanceUnit, &s.SpeedUnit, &s.Started, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			s.Ended = &ended.Time
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
