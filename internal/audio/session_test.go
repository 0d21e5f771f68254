package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// fakeStream заполняет буфер амплитудой, равной индексу устройства.
type fakeStream struct {
	buf  []float32
	amp  float32
	fail error
}

func (s *fakeStream) Start() error { return nil }
func (s *fakeStream) Stop() error  { return nil }
func (s *fakeStream) Close() error { return nil }

func (s *fakeStream) Read() error {
	if s.fail != nil {
		return s.fail
	}
	for i := range s.buf {
		s.buf[i] = s.amp
	}
	// Темп реального захвата не нужен, но без паузы цикл съедает CPU.
	time.Sleep(time.Millisecond)
	return nil
}

type fakeOpener struct {
	mu     sync.Mutex
	opened []int
	fails  int // сколько первых открытий падают
}

func (o *fakeOpener) open(dev Device, buf []float32) (frameStream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, dev.Index)
	if o.fails > 0 {
		o.fails--
		return nil, ErrDeviceUnavailable
	}
	return &fakeStream{buf: buf, amp: float32(dev.Index) / 10}, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

func collectFrames(s *Session, frames chan Frame) (context.CancelFunc, *sync.WaitGroup) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Run(ctx)
	}()
	return cancel, &wg
}

func TestSessionEmitsFramesFromActiveDevice(t *testing.T) {
	opener := &fakeOpener{}
	frames := make(chan Frame, 64)
	s := NewSession(Device{Index: 3, Name: "usb"}, 160, time.Millisecond, func(f Frame) {
		select {
		case frames <- f:
		default:
		}
	}, testLog())
	s.open = opener.open

	cancel, wg := collectFrames(s, frames)
	defer func() { cancel(); wg.Wait() }()

	select {
	case f := <-frames:
		if f.Device.Index != 3 {
			t.Errorf("frame device = %d, want 3", f.Device.Index)
		}
		if len(f.Samples) != 160 {
			t.Errorf("frame samples = %d, want 160", len(f.Samples))
		}
		if f.Samples[0] != 0.3 {
			t.Errorf("sample = %v, want 0.3", f.Samples[0])
		}
	case <-time.After(time.Second):
		t.Fatal("no frames emitted")
	}
}

func TestSessionSwitchesAtFrameBoundary(t *testing.T) {
	opener := &fakeOpener{}
	frames := make(chan Frame, 256)
	s := NewSession(Device{Index: 1, Name: "built-in"}, 160, time.Millisecond, func(f Frame) {
		select {
		case frames <- f:
		default:
		}
	}, testLog())
	s.open = opener.open

	var switched []int
	s.SetEvents(SessionEvents{OnSwitched: func(from, to Device) {
		switched = append(switched, to.Index)
	}})

	cancel, wg := collectFrames(s, frames)

	// Дожидаемся кадров от первого устройства, потом командуем переход.
	select {
	case <-frames:
	case <-time.After(time.Second):
		t.Fatal("no frames from first device")
	}
	s.SwitchTo(Device{Index: 2, Name: "usb"})

	deadline := time.After(time.Second)
	sawSecond := false
	for !sawSecond {
		select {
		case f := <-frames:
			if f.Device.Index == 2 {
				sawSecond = true
			}
		case <-deadline:
			t.Fatal("no frames from second device after switch")
		}
	}
	cancel()
	wg.Wait()

	if got := s.ActiveDevice().Index; got != 2 {
		t.Errorf("activeDevice = %d, want 2", got)
	}
	if len(switched) != 1 || switched[0] != 2 {
		t.Errorf("onSwitched calls = %v, want [2]", switched)
	}

	// Кадры не перемешиваются: после первого кадра второго устройства
	// кадров первого больше нет.
	seenSecond := false
	for {
		select {
		case f := <-frames:
			if f.Device.Index == 2 {
				seenSecond = true
			} else if seenSecond {
				t.Fatal("frame from old device after switch")
			}
		default:
			return
		}
	}
}

func TestSessionSwitchToSameDeviceIgnored(t *testing.T) {
	opener := &fakeOpener{}
	frames := make(chan Frame, 64)
	s := NewSession(Device{Index: 1, Name: "mic"}, 160, time.Millisecond, func(f Frame) {
		select {
		case frames <- f:
		default:
		}
	}, testLog())
	s.open = opener.open

	switched := 0
	s.SetEvents(SessionEvents{OnSwitched: func(from, to Device) { switched++ }})

	cancel, wg := collectFrames(s, frames)

	<-frames
	s.SwitchTo(Device{Index: 1, Name: "mic"})
	<-frames
	cancel()
	wg.Wait()

	if switched != 0 {
		t.Errorf("onSwitched calls = %d, want 0", switched)
	}
	if opener.openCount() != 1 {
		t.Errorf("opens = %d, want 1", opener.openCount())
	}
}

func TestSessionRetriesAfterOpenFailure(t *testing.T) {
	opener := &fakeOpener{fails: 2}
	frames := make(chan Frame, 64)
	s := NewSession(Device{Index: 1, Name: "mic"}, 160, time.Millisecond, func(f Frame) {
		select {
		case frames <- f:
		default:
		}
	}, testLog())
	s.open = opener.open

	var mu sync.Mutex
	lost, restored := 0, 0
	s.SetEvents(SessionEvents{
		OnLost:     func(Device) { mu.Lock(); lost++; mu.Unlock() },
		OnRestored: func(Device) { mu.Lock(); restored++; mu.Unlock() },
	})

	cancel, wg := collectFrames(s, frames)
	defer func() { cancel(); wg.Wait() }()

	select {
	case <-frames:
	case <-time.After(time.Second):
		t.Fatal("no frames after retries")
	}

	if opener.openCount() < 3 {
		t.Errorf("opens = %d, want >= 3", opener.openCount())
	}
	mu.Lock()
	defer mu.Unlock()
	// Потеря объявляется один раз, не на каждый повтор.
	if lost != 1 {
		t.Errorf("onLost calls = %d, want 1", lost)
	}
	if restored != 1 {
		t.Errorf("onRestored calls = %d, want 1", restored)
	}
}

func TestSessionRMSAttackAndDecay(t *testing.T) {
	s := NewSession(Device{Index: 1}, 160, time.Millisecond, func(Frame) {}, testLog())

	// Мгновенная атака.
	s.updateRMS(0.5)
	if got := s.LastRMS(); got != 0.5 {
		t.Fatalf("rms after attack = %v, want 0.5", got)
	}

	// Медленный спад: одно тихое окно не обнуляет громкость.
	s.updateRMS(0.0)
	got := s.LastRMS()
	if got <= 0.4 || got >= 0.5 {
		t.Errorf("rms after one quiet window = %v, want ~0.425", got)
	}
}

func TestSessionStopsOnContextCancel(t *testing.T) {
	opener := &fakeOpener{fails: 1000000}
	s := NewSession(Device{Index: 1}, 160, 10*time.Millisecond, func(Frame) {}, testLog())
	s.open = opener.open

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session did not stop on cancel")
	}
}
