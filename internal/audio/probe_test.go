package audio

import (
	"errors"
	"testing"
	"time"
)

type probeStream struct {
	buf []float32
	amp float32
	err error
}

func (s *probeStream) Start() error { return s.err }
func (s *probeStream) Stop() error  { return nil }
func (s *probeStream) Close() error { return nil }

func (s *probeStream) Read() error {
	for i := range s.buf {
		s.buf[i] = s.amp
	}
	return nil
}

func TestProbeMeasuresRMS(t *testing.T) {
	p := NewProber(250 * time.Millisecond)
	p.open = func(dev Device, buf []float32) (frameStream, error) {
		return &probeStream{buf: buf, amp: 0.2}, nil
	}

	score, err := p.Probe(Device{Index: 1, Name: "usb"})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if score.RMS < 0.199 || score.RMS > 0.201 {
		t.Errorf("rms = %v, want 0.2", score.RMS)
	}
	if score.Device.Index != 1 {
		t.Errorf("device = %d, want 1", score.Device.Index)
	}
}

func TestProbeWindowSizesBuffer(t *testing.T) {
	var gotLen int
	p := NewProber(250 * time.Millisecond)
	p.open = func(dev Device, buf []float32) (frameStream, error) {
		gotLen = len(buf)
		return &probeStream{buf: buf}, nil
	}

	if _, err := p.Probe(Device{Index: 1}); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if want := SampleRate / 4; gotLen != want {
		t.Errorf("buffer = %d samples, want %d", gotLen, want)
	}
}

func TestProbeBackoffAfterFailure(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	opens := 0
	p := NewProber(250 * time.Millisecond)
	p.now = func() time.Time { return clock }
	p.open = func(dev Device, buf []float32) (frameStream, error) {
		opens++
		return nil, errors.New("устройство занято")
	}

	if _, err := p.Probe(Device{Index: 5}); err == nil {
		t.Fatal("probe succeeded, want error")
	}
	if opens != 1 {
		t.Fatalf("opens = %d, want 1", opens)
	}

	// Внутри бэкоффа устройство не трогается.
	clock = clock.Add(10 * time.Second)
	_, err := p.Probe(Device{Index: 5})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
	if opens != 1 {
		t.Errorf("opens = %d, want 1 (backoff)", opens)
	}

	// После бэкоффа проба повторяется.
	clock = clock.Add(probeBackoff)
	p.Probe(Device{Index: 5})
	if opens != 2 {
		t.Errorf("opens = %d, want 2", opens)
	}
}

func TestProbeBackoffIsPerDevice(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewProber(250 * time.Millisecond)
	p.now = func() time.Time { return clock }
	p.open = func(dev Device, buf []float32) (frameStream, error) {
		if dev.Index == 5 {
			return nil, errors.New("устройство занято")
		}
		return &probeStream{buf: buf, amp: 0.1}, nil
	}

	p.Probe(Device{Index: 5})
	clock = clock.Add(time.Second)

	// Бэкофф сбойного устройства не мешает остальным.
	if _, err := p.Probe(Device{Index: 6}); err != nil {
		t.Errorf("probe other device: %v", err)
	}
}

func TestProbeStartFailureBacksOff(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewProber(250 * time.Millisecond)
	p.now = func() time.Time { return clock }
	p.open = func(dev Device, buf []float32) (frameStream, error) {
		return &probeStream{buf: buf, err: errors.New("нет доступа")}, nil
	}

	if _, err := p.Probe(Device{Index: 2}); err == nil {
		t.Fatal("probe succeeded, want error")
	}
	clock = clock.Add(time.Second)
	if _, err := p.Probe(Device{Index: 2}); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
}
