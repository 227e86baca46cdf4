package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/radariq/internal/analysis"
	"github.com/banshee-data/radariq/internal/db"
	"github.com/banshee-data/radariq/internal/httputil"
	"github.com/banshee-data/radariq/internal/sensor"
	appversion "github.com/banshee-data/radariq/internal/version"
)

type statusResponse struct {
	ServerVersion   string              `json:"server_version"`
	FirmwareVersion string              `json:"firmware_version"`
	SerialNumber    string              `json:"serial_number"`
	Capturing       bool                `json:"capturing"`
	Units           sensor.UnitSettings `json:"units"`
	Session         *db.Session         `json:"session,omitempty"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	version, serial, err := s.deviceInfo()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("querying sensor: %v", err))
		return
	}

	resp := statusResponse{
		ServerVersion:   appversion.Version,
		FirmwareVersion: version,
		SerialNumber:    serial,
		Capturing:       s.sensor.Capturing(),
		Units:           s.sensor.Units(),
	}
	if session, ok := s.rec.Session(); ok {
		resp.Session = &session
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var patch sensor.SettingsPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("decoding settings: %v", err))
			return
		}
		if patch.Empty() {
			httputil.BadRequest(w, "no settings provided")
			return
		}
		if err := s.sensor.Apply(patch); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("applying settings: %v", err))
			return
		}
	default:
		httputil.MethodNotAllowed(w)
		return
	}

	settings, err := s.sensor.Settings()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("reading settings: %v", err))
		return
	}
	httputil.WriteJSONOK(w, settings)
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var units sensor.UnitSettings
		if err := json.NewDecoder(r.Body).Decode(&units); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("decoding units: %v", err))
			return
		}
		if err := s.sensor.SetUnits(units); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	default:
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.sensor.Units())
}

func (s *Server) startCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	samples := 0
	if v := r.URL.Query().Get("samples"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			httputil.BadRequest(w, "invalid 'samples' parameter")
			return
		}
		samples = parsed
	}
	record := r.URL.Query().Get("record") != "false"

	// Reject repeat starts before touching the recorder so an in-progress
	// recording session is never ended by a conflicting request.
	if s.sensor.Capturing() {
		httputil.WriteJSONError(w, http.StatusConflict, "capture already running")
		return
	}

	var session *db.Session
	if record {
		mode, err := s.sensor.Mode()
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("querying mode: %v", err))
			return
		}
		_, serial, err := s.deviceInfo()
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("querying sensor: %v", err))
			return
		}
		started, err := s.rec.Begin(serial, mode, s.sensor.Units())
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("starting session: %v", err))
			return
		}
		session = &started
	}

	if err := s.sensor.Start(samples); err != nil {
		if record {
			s.rec.End()
		}
		switch {
		case errors.Is(err, sensor.ErrCapturing):
			httputil.WriteJSONError(w, http.StatusConflict, "capture already running")
		case errors.Is(err, sensor.ErrClosed):
			httputil.WriteJSONError(w, http.StatusServiceUnavailable, "sensor closed")
		default:
			httputil.BadRequest(w, err.Error())
		}
		return
	}

	resp := map[string]interface{}{"capturing": true, "samples": samples}
	if session != nil {
		resp["session"] = session
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) stopCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	err := s.sensor.Stop()
	if endErr := s.rec.End(); endErr != nil {
		httputil.InternalServerError(w, fmt.Sprintf("ending session: %v", endErr))
		return
	}
	if err != nil && !errors.Is(err, sensor.ErrNotCapturing) {
		httputil.InternalServerError(w, fmt.Sprintf("stopping capture: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"capturing": false})
}

type frameResponse struct {
	Frame         sensor.Frame            `json:"frame"`
	PointSummary  *analysis.FrameSummary  `json:"point_summary,omitempty"`
	ObjectSummary *analysis.ObjectSummary `json:"object_summary,omitempty"`
}

func (s *Server) latestFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	frame, ok := s.rec.Latest()
	if !ok {
		httputil.NotFound(w, "no frames captured yet")
		return
	}

	resp := frameResponse{Frame: frame}
	switch frame.Mode {
	case sensor.PointCloud:
		summary := analysis.SummarizePoints(frame.Points)
		resp.PointSummary = &summary
	case sensor.ObjectTracking:
		summary := analysis.SummarizeObjects(frame.Objects)
		resp.ObjectSummary = &summary
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showSensorStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.sensor.Statistics())
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	sessions, err := s.db.Sessions(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("listing sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) sessionStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.db.Session(id); err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			httputil.NotFound(w, "session not found")
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}

	stats, err := s.db.SessionStats(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("computing session stats: %v", err))
		return
	}
	httputil.WriteJSONOK(w, stats)
}

func (s *Server) sessionFrames(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	frames, err := s.db.Frames(id, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("listing frames: %v", err))
		return
	}
	if frames == nil {
		frames = []db.FrameRecord{}
	}
	httputil.WriteJSONOK(w, frames)
}
