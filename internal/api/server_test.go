package api

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/radariq/internal/db"
	"github.com/banshee-data/radariq/internal/protocol"
	"github.com/banshee-data/radariq/internal/recorder"
	"github.com/banshee-data/radariq/internal/sensor"
)

// stubMux implements serialmux.SerialMuxInterface against an in-memory
// settings store, mirroring how the device echoes sets and answers
// requests.
type stubMux struct {
	mu          sync.Mutex
	subscribers map[string]chan []byte
	sent        [][]byte
	store       map[protocol.Command][]byte
	nextID      int
}

func newStubMux() *stubMux {
	m := &stubMux{
		subscribers: make(map[string]chan []byte),
		store:       make(map[protocol.Command][]byte),
	}

	version := make([]byte, 8)
	version[0], version[1] = 1, 2
	binary.LittleEndian.PutUint16(version[2:], 100)
	version[4], version[5] = 2, 0
	binary.LittleEndian.PutUint16(version[6:], 7)
	m.store[protocol.CmdVersion] = version

	serial := make([]byte, 8)
	binary.LittleEndian.PutUint32(serial[0:], 123)
	binary.LittleEndian.PutUint32(serial[4:], 456)
	m.store[protocol.CmdSerialNumber] = serial

	m.store[protocol.CmdMode] = []byte{0}
	m.store[protocol.CmdFrameRate] = []byte{4}

	distance := make([]byte, 4)
	binary.LittleEndian.PutUint16(distance[0:], 50)
	binary.LittleEndian.PutUint16(distance[2:], 9000)
	m.store[protocol.CmdDistanceFilter] = distance

	angleMin := int8(-40)
	m.store[protocol.CmdAngleFilter] = []byte{byte(angleMin), 40}

	heightMin := int16(-1000)
	height := make([]byte, 4)
	binary.LittleEndian.PutUint16(height[0:], uint16(heightMin))
	binary.LittleEndian.PutUint16(height[2:], 1000)
	m.store[protocol.CmdHeightFilter] = height

	m.store[protocol.CmdMovingFilter] = []byte{0}
	m.store[protocol.CmdPointDensity] = []byte{0}
	m.store[protocol.CmdSensitivity] = []byte{5}
	m.store[protocol.CmdObjectTypeMode] = []byte{1}
	m.store[protocol.CmdAutoStart] = []byte{0}
	return m
}

func (m *stubMux) Subscribe() (string, chan []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("sub-%d", m.nextID)
	ch := make(chan []byte, 32)
	m.subscribers[id] = ch
	return id, ch
}

func (m *stubMux) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

func (m *stubMux) SendPacket(payload []byte) error {
	m.mu.Lock()
	m.sent = append(m.sent, append([]byte(nil), payload...))
	m.mu.Unlock()

	if len(payload) < 2 {
		return nil
	}
	cmd := protocol.Command(payload[0])
	switch cmd {
	case protocol.CmdCaptureStart, protocol.CmdCaptureStop:
		return nil
	}

	switch protocol.Variant(payload[1]) {
	case protocol.VariantSet:
		m.mu.Lock()
		m.store[cmd] = append([]byte(nil), payload[2:]...)
		m.mu.Unlock()
		m.broadcast(append([]byte{payload[0], byte(protocol.VariantResponse)}, payload[2:]...))
	case protocol.VariantRequest:
		m.mu.Lock()
		stored := m.store[cmd]
		m.mu.Unlock()
		m.broadcast(append([]byte{payload[0], byte(protocol.VariantResponse)}, stored...))
	}
	return nil
}

func (m *stubMux) broadcast(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (m *stubMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (m *stubMux) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return nil
}

func (m *stubMux) AttachAdminRoutes(*http.ServeMux) {}

type testEnv struct {
	mux    *stubMux
	sensor *sensor.Sensor
	db     *db.DB
	rec    *recorder.Recorder
	http   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mux := newStubMux()
	s, err := sensor.New(mux)
	require.NoError(t, err)

	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	rec := recorder.New(s, database)
	ctx, cancel := context.WithCancel(context.Background())
	go rec.Run(ctx)

	srv := httptest.NewServer(NewServer(s, rec, database).ServeMux())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		s.Close()
		database.Close()
	})
	return &testEnv{mux: mux, sensor: s, db: database, rec: rec, http: srv}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(e.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (e *testEnv) post(t *testing.T, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(e.http.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status statusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "1.2.100", status.FirmwareVersion)
	assert.Equal(t, "123-456", status.SerialNumber)
	assert.False(t, status.Capturing)
	assert.Equal(t, "m", status.Units.Distance)
	assert.Nil(t, status.Session)
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/api/settings")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got sensor.Settings
	require.NoError(t, json.Unmarshal(body, &got))
	want := sensor.Settings{
		Mode:              sensor.PointCloud,
		FrameRate:         4,
		DistanceFilterMin: 0.05,
		DistanceFilterMax: 9,
		AngleFilterMin:    -40,
		AngleFilterMax:    40,
		HeightFilterMin:   -1,
		HeightFilterMax:   1,
		Sensitivity:       5,
		ObjectTypeMode:    sensor.ObjectTypePerson,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}

	resp, body = env.post(t, "/api/settings", `{"frame_rate": 10, "sensitivity": 7}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 10, got.FrameRate)
	assert.Equal(t, 7, got.Sensitivity)
}

func TestSettingsRejectsInvalid(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.post(t, "/api/settings", `{"frame_rate": 99}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.post(t, "/api/settings", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.post(t, "/api/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnitsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.post(t, "/api/units", `{"distance": "ft", "speed": "ft/s", "acceleration": "ft/s^2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var units sensor.UnitSettings
	require.NoError(t, json.Unmarshal(body, &units))
	assert.Equal(t, "ft", units.Distance)

	resp, _ = env.post(t, "/api/units", `{"distance": "furlong", "speed": "m/s", "acceleration": "m/s^2"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/capture/start")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = env.post(t, "/api/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func pointFramePacket(x, y int16, intensity uint8) []byte {
	p := []byte{byte(protocol.CmdPointCloudData), byte(protocol.VariantResponse), byte(protocol.SubframeEnd), 1}
	row := make([]byte, 9)
	binary.LittleEndian.PutUint16(row[0:], uint16(x))
	binary.LittleEndian.PutUint16(row[2:], uint16(y))
	row[6] = intensity
	return append(p, row...)
}

func TestCaptureLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.post(t, "/api/capture/start", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var started struct {
		Capturing bool        `json:"capturing"`
		Session   *db.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(body, &started))
	assert.True(t, started.Capturing)
	require.NotNil(t, started.Session)
	assert.Equal(t, "123-456", started.Session.SerialNumber)
	assert.Equal(t, "point-cloud", started.Session.Mode)

	// Starting again while capturing is a conflict, and the rejected
	// request must leave the recording session untouched.
	resp, _ = env.post(t, "/api/capture/start", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	current, open := env.rec.Session()
	require.True(t, open)
	assert.Equal(t, started.Session.ID, current.ID)

	env.mux.broadcast(pointFramePacket(3000, 4000, 42))

	require.Eventually(t, func() bool {
		_, ok := env.rec.Latest()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	resp, body = env.get(t, "/api/frames/latest")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var latest frameResponse
	require.NoError(t, json.Unmarshal(body, &latest))
	require.Len(t, latest.Frame.Points, 1)
	assert.InDelta(t, 3, latest.Frame.Points[0].X, 1e-9)
	require.NotNil(t, latest.PointSummary)
	assert.InDelta(t, 5, latest.PointSummary.MaxRange, 1e-9)

	// The frame was recorded under the session.
	require.Eventually(t, func() bool {
		stats, err := env.db.SessionStats(started.Session.ID)
		return err == nil && stats.FrameCount == 1
	}, 2*time.Second, 5*time.Millisecond)

	resp, _ = env.post(t, "/api/capture/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, env.sensor.Capturing())

	resp, body = env.get(t, "/api/sessions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sessions []db.Session
	require.NoError(t, json.Unmarshal(body, &sessions))
	require.Len(t, sessions, 1)
	assert.NotNil(t, sessions[0].Ended)

	resp, body = env.get(t, "/api/sessions/"+started.Session.ID+"/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats db.SessionStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 1, stats.FrameCount)
	assert.Equal(t, 1, stats.PointCount)

	resp, body = env.get(t, "/api/sessions/"+started.Session.ID+"/frames")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var frames []db.FrameRecord
	require.NoError(t, json.Unmarshal(body, &frames))
	require.Len(t, frames, 1)
	assert.Equal(t, 1, frames[0].PointCount)
}

func TestCaptureWithoutRecording(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.post(t, "/api/capture/start?record=false&samples=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var started struct {
		Session *db.Session `json:"session"`
		Samples int         `json:"samples"`
	}
	require.NoError(t, json.Unmarshal(body, &started))
	assert.Nil(t, started.Session)
	assert.Equal(t, 5, started.Samples)

	sessions, err := env.db.Sessions(10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestLatestFrameBeforeCapture(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/frames/latest")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionStatsNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/sessions/no-such-session/stats")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPointCloudChart(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/chart/pointcloud")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, env.sensor.Start(0))
	env.mux.broadcast(pointFramePacket(1000, 2000, 80))
	require.Eventually(t, func() bool {
		_, ok := env.rec.Latest()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	resp, body := env.get(t, "/api/chart/pointcloud")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "echarts")
}
