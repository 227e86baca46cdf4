package sensor

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/radariq/internal/protocol"
)

// fakeMux implements serialmux.SerialMuxInterface against an in-memory
// settings store. Set packets update the store and echo back; request
// packets answer from the store. Streamed data is injected with broadcast.
type fakeMux struct {
	mu          sync.Mutex
	subscribers map[string]chan []byte
	sent        [][]byte
	store       map[protocol.Command][]byte
	sendErr     error
	nextID      int
}

func newFakeMux() *fakeMux {
	return &fakeMux{
		subscribers: make(map[string]chan []byte),
		store:       make(map[protocol.Command][]byte),
	}
}

func (f *fakeMux) Subscribe() (string, chan []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("sub-%d", f.nextID)
	ch := make(chan []byte, 32)
	f.subscribers[id] = ch
	return id, ch
}

func (f *fakeMux) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subscribers[id]; ok {
		close(ch)
		delete(f.subscribers, id)
	}
}

func (f *fakeMux) SendPacket(payload []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, append([]byte(nil), payload...))
	err := f.sendErr
	f.mu.Unlock()
	if err != nil {
		return err
	}

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
		f.mu.Lock()
		f.store[cmd] = append([]byte(nil), payload[2:]...)
		f.mu.Unlock()
		f.broadcast(append([]byte{payload[0], byte(protocol.VariantResponse)}, payload[2:]...))
	case protocol.VariantRequest:
		f.mu.Lock()
		stored := f.store[cmd]
		f.mu.Unlock()
		f.broadcast(append([]byte{payload[0], byte(protocol.VariantResponse)}, stored...))
	}
	return nil
}

func (f *fakeMux) broadcast(payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subscribers {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (f *fakeMux) sentPackets() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (f *fakeMux) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subscribers {
		close(ch)
		delete(f.subscribers, id)
	}
	return nil
}

func (f *fakeMux) AttachAdminRoutes(*http.ServeMux) {}

func newTestSensor(t *testing.T, mux *fakeMux, opts ...Option) *Sensor {
	t.Helper()
	s, err := New(mux, opts...)
	require.NoError(t, err)
	return s
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func le16s(v int16) []byte { return le16(uint16(v)) }

func sbyte(v int8) byte { return byte(v) }

// seedDefaults fills the store with a plausible full settings surface so
// Settings() can read every key back.
func seedDefaults(mux *fakeMux) {
	mux.store[protocol.CmdMode] = []byte{0}
	mux.store[protocol.CmdFrameRate] = []byte{4}
	mux.store[protocol.CmdDistanceFilter] = append(le16(0), le16(10000)...)
	mux.store[protocol.CmdAngleFilter] = []byte{sbyte(-55), 55}
	mux.store[protocol.CmdHeightFilter] = append(le16s(-1000), le16(1000)...)
	mux.store[protocol.CmdMovingFilter] = []byte{0}
	mux.store[protocol.CmdPointDensity] = []byte{0}
	mux.store[protocol.CmdSensitivity] = []byte{9}
	mux.store[protocol.CmdObjectTypeMode] = []byte{1}
	mux.store[protocol.CmdAutoStart] = []byte{0}
}

func TestSetModeRoundTrip(t *testing.T) {
	mux := newFakeMux()
	s := newTestSensor(t, mux)

	require.NoError(t, s.SetMode(ObjectTracking))

	mode, err := s.Mode()
	require.NoError(t, err)
	assert.Equal(t, ObjectTracking, mode)
}

func TestSetModeRejectsInvalid(t *testing.T) {
	mux := newFakeMux()
	s := newTestSensor(t, mux)

	require.Error(t, s.SetMode(CaptureMode(7)))
	assert.Empty(t, mux.sentPackets(), "invalid mode must not reach the wire")
}

func TestSetFrameRateValidation(t *testing.T) {
	mux := newFakeMux()
	s := newTestSensor(t, mux)

	require.NoError(t, s.SetFrameRate(MaxFrameRate))
	require.Error(t, s.SetFrameRate(MaxFrameRate+1))
	require.Error(t, s.SetFrameRate(-1))

	rate, err := s.FrameRate()
	require.NoError(t, err)
	assert.Equal(t, MaxFrameRate, rate)
}

func TestDistanceFilterConvertsUnits(t *testing.T) {
	mux := newFakeMux()
	s := newTestSensor(t, mux)

	// Default units are metres; bounds are sent as whole millimetres.
	require.NoError(t, s.SetDistanceFilter(0.05, 9))

	sent := mux.sentPackets()
	require.Len(t, sent, 1)
	assert.Equal(t, byte(protocol.CmdDistanceFilter), sent[0][0])
	assert.Equal(t, uint16(50), binary.LittleEndian.Uint16(sent[0][2:]))
	assert.Equal(t, uint16(9000), binary.LittleEndian.Uint16(sent[0][4:]))

	min, max, err := s.DistanceFilter()
	require.NoError(t, err)
	assert.InDelta(t, 0.05, min, 1e-9)
	assert.InDelta(t, 9, max, 1e-9)
}

func TestSetDistanceFilterRejectsOutOfRange(t *testing.T) {
	mux := newFakeMux()
	s := newTestSensor(t, mux)

	require.Error(t, s.SetDistanceFilter(0, 10.5), "beyond 10m")
	require.Error(t, s.SetDistanceFilter(5, 2), "min above max")
	assert.Empty(t, mux.sentPackets())
}

func TestAngleFilterBounds(t *testing.T) {
	mux := newFakeMux()
	s := newTestSensor(t, mux)

	require.NoError(t, s.SetAngleFilter(-45, 45))
	require.Error(t, s.SetAngleFilter(-56, 0))
	require.Error(t, s.SetAngleFilter(0, 56))
	require.Error(t, s.SetAngleFilter(30, -30))

	min, max, err := s.AngleFilter()
	require.NoError(t, err)
	assert.Equal(t, -45, min)
	assert.Equal(t, 45, max)
}

func TestHeightFilterAllowsNegativeBounds(t *testing.T) {
	mux := newFakeMux()
	s := newTestSensor(t, mux)

	require.NoError(t, s.SetHeightFilter(-1.5, 2))

	min, max, err := s.HeightFilter()
	require.NoError(t, err)
	assert.InDelta(t, -1.5, min, 1e-9)
	assert.InDelta(t, 2, max, 1e-9)
}

func TestSetSensitivityValidation(t *testing.T) {
	mux := newFakeMux()
	s := newTestSensor(t, mux)

	require.NoError(t, s.SetSensitivity(9))
	require.Error(t, s.SetSensitivity(10))
	require.Error(t, s.SetSensitivity(-1))
}

func TestVersionAndSerialNumber(t *testing.T) {
	mux := newFakeMux()
	mux.store[protocol.CmdVersion] = []byte{1, 2, 0x10, 0x00, 3, 0, 0x01, 0x00}
	serial := make([]byte, 8)
	binary.LittleEndian.PutUint32(serial[0:], 111)
	binary.LittleEndian.PutUint32(serial[4:], 222)
	mux.store[protocol.CmdSerialNumber] = serial

	s := newTestSensor(t, mux)

	v, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, "1.2.16", v.Firmware.String())
	assert.Equal(t, "3.0.1", v.Hardware.String())

	sn, err := s.SerialNumber()
	require.NoError(t, err)
	assert.Equal(t, "111-222", sn)
}

func TestTransactionTimeout(t *testing.T) {
	mux := newFakeMux()
	// Capture commands get no response from the fake, so a transaction
	// waiting on one times out.
	s := newTestSensor(t, mux, WithTimeout(50*time.Millisecond))

	_, err := s.transaction(protocol.CaptureStart(0), protocol.CmdCaptureStart)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestTransactionSkipsDiagnosticMessages(t *testing.T) {
	mux := newFakeMux()
	s := newTestSensor(t, mux, WithTimeout(time.Second))

	done := make(chan error, 1)
	go func() {
		_, err := s.transaction(protocol.CaptureStart(0), protocol.CmdCaptureStart)
		done <- err
	}()

	// Give the transaction time to subscribe, then interleave a message
	// before the real response.
	time.Sleep(20 * time.Millisecond)
	mux.broadcast(append([]byte{byte(protocol.CmdMessage), byte(protocol.VariantResponse), 2, 0}, "starting"...))
	mux.broadcast([]byte{byte(protocol.CmdCaptureStart), byte(protocol.VariantResponse)})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("transaction did not complete")
	}
}

func TestSettingsSnapshot(t *testing.T) {
	mux := newFakeMux()
	mux.store[protocol.CmdMode] = []byte{1}
	mux.store[protocol.CmdFrameRate] = []byte{10}
	mux.store[protocol.CmdDistanceFilter] = append(le16(50), le16(9000)...)
	mux.store[protocol.CmdAngleFilter] = []byte{sbyte(-40), 40}
	mux.store[protocol.CmdHeightFilter] = append(le16s(-1000), le16(1000)...)
	mux.store[protocol.CmdMovingFilter] = []byte{1}
	mux.store[protocol.CmdPointDensity] = []byte{2}
	mux.store[protocol.CmdSensitivity] = []byte{7}
	mux.store[protocol.CmdObjectTypeMode] = []byte{4}
	mux.store[protocol.CmdAutoStart] = []byte{1}

	s := newTestSensor(t, mux)

	settings, err := s.Settings()
	require.NoError(t, err)
	assert.Equal(t, Settings{
		Mode:              ObjectTracking,
		FrameRate:         10,
		DistanceFilterMin: 0.05,
		DistanceFilterMax: 9,
		AngleFilterMin:    -40,
		AngleFilterMax:    40,
		HeightFilterMin:   -1,
		HeightFilterMax:   1,
		MovingFilter:      MovingObjectsOnly,
		PointDensity:      DensityVeryDense,
		Sensitivity:       7,
		ObjectTypeMode:    ObjectTypeFastVehicle,
		AutoStart:         true,
	}, settings)
}

func TestApplyPatch(t *testing.T) {
	mux := newFakeMux()
	seedDefaults(mux)
	mux.store[protocol.CmdMode] = []byte{1}
	s := newTestSensor(t, mux)

	mode := PointCloud
	sens := 5
	max := 4.0
	require.NoError(t, s.Apply(SettingsPatch{
		Mode:              &mode,
		Sensitivity:       &sens,
		DistanceFilterMax: &max,
	}))

	got, err := s.Settings()
	require.NoError(t, err)
	assert.Equal(t, PointCloud, got.Mode)
	assert.Equal(t, 5, got.Sensitivity)
	// The unset minimum bound is preserved from the sensor.
	assert.InDelta(t, 0, got.DistanceFilterMin, 1e-9)
	assert.InDelta(t, 4, got.DistanceFilterMax, 1e-9)
}

func TestApplyEmptyPatch(t *testing.T) {
	mux := newFakeMux()
	s := newTestSensor(t, mux)

	require.NoError(t, s.Apply(SettingsPatch{}))
	assert.Empty(t, mux.sentPackets())
}
