package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/radariq/internal/sensor"
)

var ErrFrameNotFound = errors.New("frame not found")

// FrameRecord is the stored metadata for one recorded frame.
type FrameRecord struct {
	ID          int64     `json:"frame_id"`
	SessionID   string    `json:"session_id"`
	Number      uint64    `json:"number"`
	Captured    time.Time `json:"captured"`
	Mode        string    `json:"mode"`
	PointCount  int       `json:"point_count"`
	ObjectCount int       `json:"object_count"`
}

// RecordFrame stores a frame and its measurements under the given session.
// The frame metadata and all rows are written in one transaction.
func (db *DB) RecordFrame(sessionID string, frame sensor.Frame) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO frames (session_id, number, captured, mode, point_count, object_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, frame.Number, frame.Captured.UTC(), frame.Mode.String(),
		len(frame.Points), len(frame.Objects),
	)
	if err != nil {
		return 0, fmt.Errorf("recording frame: %w", err)
	}
	frameID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(frame.Points) > 0 {
		stmt, err := tx.Prepare(
			`INSERT INTO points (frame_id, x, y, z, intensity, velocity) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer stmt.Close()
		for _, p := range frame.Points {
			if _, err := stmt.Exec(frameID, p.X, p.Y, p.Z, p.Intensity, p.Velocity); err != nil {
				return 0, fmt.Errorf("recording point: %w", err)
			}
		}
	}

	if len(frame.Objects) > 0 {
		stmt, err := tx.Prepare(
			`INSERT INTO objects (frame_id, tracking_id, x_pos, y_pos, z_pos, x_vel, y_vel, z_vel, x_acc, y_acc, z_acc)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer stmt.Close()
		for _, o := range frame.Objects {
			if _, err := stmt.Exec(frameID, o.TrackingID,
				o.Position[0], o.Position[1], o.Position[2],
				o.Velocity[0], o.Velocity[1], o.Velocity[2],
				o.Acceleration[0], o.Acceleration[1], o.Acceleration[2]); err != nil {
				return 0, fmt.Errorf("recording object: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return frameID, nil
}

// Frames returns frame metadata for a session, newest first.
func (db *DB) Frames(sessionID string, limit int) ([]FrameRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT frame_id, session_id, number, captured, mode, point_count, object_count
		 FROM frames WHERE session_id = ? ORDER BY captured DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []FrameRecord
	for rows.Next() {
		var f FrameRecord
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Number, &f.Captured, &f.Mode, &f.PointCount, &f.ObjectCount); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// FramePoints returns the stored point measurements of one frame.
func (db *DB) FramePoints(frameID int64) ([]sensor.PointMeasurement, error) {
	rows, err := db.Query(
		`SELECT x, y, z, intensity, velocity FROM points WHERE frame_id = ?`, frameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []sensor.PointMeasurement
	for rows.Next() {
		var p sensor.PointMeasurement
		if err := rows.Scan(&p.X, &p.Y, &p.Z, &p.Intensity, &p.Velocity); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// FrameObjects returns the stored object measurements of one frame.
func (db *DB) FrameObjects(frameID int64) ([]sensor.ObjectMeasurement, error) {
	rows, err := db.Query(
		`SELECT tracking_id, x_pos, y_pos, z_pos, x_vel, y_vel, z_vel, x_acc, y_acc, z_acc
		 FROM objects WHERE frame_id = ?`, frameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []sensor.ObjectMeasurement
	for rows.Next() {
		var o sensor.ObjectMeasurement
		if err := rows.Scan(&o.TrackingID,
			&o.Position[0], &o.Position[1], &o.Position[2],
			&o.Velocity[0], &o.Velocity[1], &o.Velocity[2],
			&o.Acceleration[0], &o.Acceleration[1], &o.Acceleration[2]); err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	return objects, rows.Err()
}

// LatestFrame returns the most recently captured frame of a session.
func (db *DB) LatestFrame(sessionID string) (FrameRecord, error) {
	row := db.QueryRow(
		`SELECT frame_id, session_id, number, captured, mode, point_count, object_count
		 FROM frames WHERE session_id = ? ORDER BY captured DESC LIMIT 1`, sessionID)

	var f FrameRecord
	if err := row.Scan(&f.ID, &f.SessionID, &f.Number, &f.Captured, &f.Mode, &f.PointCount, &f.ObjectCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FrameRecord{}, ErrFrameNotFound
		}
		return FrameRecord{}, err
	}
	return f, nil
}

// SessionStats summarizes the frames recorded in one session.
type SessionStats struct {
	SessionID     string     `json:"session_id"`
	FrameCount    int        `json:"frame_count"`
	PointCount    int        `json:"point_count"`
	ObjectCount   int        `json:"object_count"`
	FirstCaptured *time.Time `json:"first_captured,omitempty"`
	LastCaptured  *time.Time `json:"last_captured,omitempty"`
}

// SessionStats returns aggregate counters for a session's frames.
func (db *DB) SessionStats(sessionID string) (SessionStats, error) {
	stats := SessionStats{SessionID: sessionID}

	row := db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(point_count), 0), COALESCE(SUM(object_count), 0)
		 FROM frames WHERE session_id = ?`, sessionID)
	if err := row.Scan(&stats.FrameCount, &stats.PointCount, &stats.ObjectCount); err != nil {
		return SessionStats{}, err
	}
	if stats.FrameCount == 0 {
		return stats, nil
	}

	// MIN/MAX over the captured column lose its declared timestamp type, so
	// the driver would hand the aggregates back as strings. The bounds come
	// from ordered scans of the raw column instead.
	var first, last time.Time
	if err := db.QueryRow(
		`SELECT captured FROM frames WHERE session_id = ? ORDER BY captured ASC LIMIT 1`,
		sessionID).Scan(&first); err != nil {
		return SessionStats{}, err
	}
	if err := db.QueryRow(
		`SELECT captured FROM frames WHERE session_id = ? ORDER BY captured DESC LIMIT 1`,
		sessionID).Scan(&last); err != nil {
		return SessionStats{}, err
	}
	stats.FirstCaptured = &first
	stats.LastCaptured = &last
	return stats, nil
}
