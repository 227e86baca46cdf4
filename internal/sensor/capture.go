package sensor

import (
	"context"
	"fmt"

	"github.com/banshee-data/radariq/internal/monitoring"
	"github.com/banshee-data/radariq/internal/protocol"
)

// Start begins a capture. samples limits the capture to that many frames,
// after which the sensor is stopped automatically; zero captures
// continuously until Stop is called. Frames are delivered on the Frames
// channel.
func (s *Sensor) Start(samples int) error {
	if samples < 0 || samples > MaxSamples {
		return fmt.Errorf("samples %d out of range 0-%d", samples, MaxSamples)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.capturing {
		return ErrCapturing
	}

	// Subscribe before sending the start command so the first subframe
	// cannot be missed.
	id, ch := s.mux.Subscribe()
	if err := s.mux.SendPacket(protocol.CaptureStart(byte(samples))); err != nil {
		s.mux.Unsubscribe(id)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.capturing = true
	s.captureCancel = cancel
	s.captureDone = make(chan struct{})
	go s.capture(ctx, id, ch, samples, s.captureDone)
	return nil
}

// Stop ends a running capture and waits for the capture goroutine to
// drain.
func (s *Sensor) Stop() error {
	s.mu.Lock()
	if !s.capturing {
		s.mu.Unlock()
		return ErrNotCapturing
	}
	cancel := s.captureCancel
	done := s.captureDone
	s.mu.Unlock()

	err := s.mux.SendPacket(protocol.CaptureStop())
	cancel()
	<-done

	s.mu.Lock()
	s.capturing = false
	s.captureCancel = nil
	s.mu.Unlock()
	return err
}

// Capturing reports whether a capture is currently running.
func (s *Sensor) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}

// Frames returns the frame queue. The channel is never closed; use Stop or
// Close to end a capture.
func (s *Sensor) Frames() <-chan Frame {
	return s.frames
}

// Frame returns the oldest queued frame without blocking. ok is false when
// the queue is empty.
func (s *Sensor) Frame() (frame Frame, ok bool) {
	select {
	case frame = <-s.frames:
		return frame, true
	default:
		return Frame{}, false
	}
}

// QueueLen returns the number of frames waiting in the queue.
func (s *Sensor) QueueLen() int {
	return len(s.frames)
}

// Statistics holds the most recent performance counters streamed by the
// sensor during a capture.
type Statistics struct {
	Core       *protocol.CoreStats       `json:"core,omitempty"`
	PointCloud *protocol.PointCloudStats `json:"point_cloud,omitempty"`
}

// Statistics returns the latest counters received, or zero-value pointers
// when no capture has run yet.
func (s *Sensor) Statistics() Statistics {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	var out Statistics
	if s.coreStats != nil {
		core := *s.coreStats
		out.Core = &core
	}
	if s.pcStats != nil {
		pc := *s.pcStats
		out.PointCloud = &pc
	}
	return out
}

// capture consumes streamed packets, assembles subframes into frames, and
// enqueues them until the capture is cancelled or the sample limit is
// reached.
func (s *Sensor) capture(ctx context.Context, id string, ch chan []byte, samples int, done chan struct{}) {
	defer close(done)
	defer s.mux.Unsubscribe(id)

	var points []protocol.Point
	var objects []protocol.Object
	captured := 0

	for {
		select {
		case <-ctx.Done():
			return

		case payload, ok := <-ch:
			if !ok {
				return
			}
			if len(payload) == 0 {
				continue
			}

			switch protocol.Command(payload[0]) {
			case protocol.CmdMessage:
				if msg, err := protocol.ParseMessage(payload); err == nil {
					logMessage(msg)
				}

			case protocol.CmdCoreStats:
				if stats, err := protocol.ParseCoreStats(payload); err == nil {
					s.statsMu.Lock()
					s.coreStats = &stats
					s.statsMu.Unlock()
				}

			case protocol.CmdPointCloudStats:
				if stats, err := protocol.ParsePointCloudStats(payload); err == nil {
					s.statsMu.Lock()
					s.pcStats = &stats
					s.statsMu.Unlock()
				}

			case protocol.CmdPointCloudData:
				sub, err := protocol.ParsePointCloud(payload)
				if err != nil {
					monitoring.Logf("sensor: dropping point cloud subframe: %v", err)
					continue
				}
				if sub.Type == protocol.SubframeStart {
					points = points[:0]
				}
				points = append(points, sub.Points...)
				if sub.Type != protocol.SubframeEnd {
					continue
				}
				frame, err := s.assemblePointFrame(points)
				points = points[:0]
				if err != nil {
					monitoring.Logf("sensor: dropping frame: %v", err)
					continue
				}
				s.enqueue(frame)
				captured++

			case protocol.CmdObjectData:
				sub, err := protocol.ParseObjects(payload)
				if err != nil {
					monitoring.Logf("sensor: dropping object subframe: %v", err)
					continue
				}
				if sub.Type == protocol.SubframeStart {
					objects = objects[:0]
				}
				objects = append(objects, sub.Objects...)
				if sub.Type != protocol.SubframeEnd {
					continue
				}
				frame, err := s.assembleObjectFrame(objects)
				objects = objects[:0]
				if err != nil {
					monitoring.Logf("sensor: dropping frame: %v", err)
					continue
				}
				s.enqueue(frame)
				captured++
			}

			if samples > 0 && captured >= samples {
				s.finishCapture()
				return
			}
		}
	}
}

func (s *Sensor) assemblePointFrame(raw []protocol.Point) (Frame, error) {
	u, mirror, n := s.nextFrameMeta()
	converted, err := convertPoints(raw, u)
	if err != nil {
		return Frame{}, err
	}
	if mirror {
		for i := range converted {
			converted[i].X = -converted[i].X
		}
	}
	return Frame{
		Number:   n,
		Captured: s.clock.Now(),
		Mode:     PointCloud,
		Points:   converted,
	}, nil
}

func (s *Sensor) assembleObjectFrame(raw []protocol.Object) (Frame, error) {
	u, mirror, n := s.nextFrameMeta()
	converted, err := convertObjects(raw, u)
	if err != nil {
		return Frame{}, err
	}
	if mirror {
		for i := range converted {
			converted[i].Position[0] = -converted[i].Position[0]
			converted[i].Velocity[0] = -converted[i].Velocity[0]
			converted[i].Acceleration[0] = -converted[i].Acceleration[0]
		}
	}
	return Frame{
		Number:   n,
		Captured: s.clock.Now(),
		Mode:     ObjectTracking,
		Objects:  converted,
	}, nil
}

func (s *Sensor) nextFrameMeta() (UnitSettings, bool, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameCount++
	return s.unitSettings, s.mirrorX, s.frameCount
}

// enqueue adds a frame to the queue, discarding the oldest frame when the
// queue is full so consumers always see recent data.
func (s *Sensor) enqueue(f Frame) {
	for {
		select {
		case s.frames <- f:
			return
		default:
		}
		select {
		case <-s.frames:
		default:
		}
	}
}

// finishCapture marks the capture stopped after the sample limit is
// reached. The sensor stops transmitting on its own in fixed-length mode;
// the stop command is sent anyway in case frames were dropped on the wire.
func (s *Sensor) finishCapture() {
	s.mu.Lock()
	s.capturing = false
	s.captureCancel = nil
	s.mu.Unlock()

	if err := s.mux.SendPacket(protocol.CaptureStop()); err != nil {
		monitoring.Logf("sensor: stop after fixed-length capture: %v", err)
	}
}

// Close stops any running capture and closes the underlying mux.
func (s *Sensor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	capturing := s.capturing
	cancel := s.captureCancel
	done := s.captureDone
	s.capturing = false
	s.captureCancel = nil
	s.mu.Unlock()

	if capturing {
		if err := s.mux.SendPacket(protocol.CaptureStop()); err != nil {
			monitoring.Logf("sensor: stop during close: %v", err)
		}
		if cancel != nil {
			cancel()
		}
		if done != nil {
			<-done
		}
	}
	return s.mux.Close()
}
