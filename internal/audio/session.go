package audio

import (
	"context"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

// frameStream - открытый поток захвата. Абстракция нужна для подмены
// оборудования в тестах.
type frameStream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

// streamOpener открывает поток захвата на устройстве, читающий кадры
// размером len(buf) сэмплов в buf.
type streamOpener func(dev Device, buf []float32) (frameStream, error)

// openPortAudio - боевой streamOpener поверх PortAudio.
func openPortAudio(dev Device, buf []float32) (frameStream, error) {
	if dev.info == nil {
		return nil, ErrDeviceNotFound
	}
	params := portaudio.LowLatencyParameters(dev.info, nil)
	params.Input.Channels = Channels
	params.SampleRate = SampleRate
	params.FramesPerBuffer = len(buf)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// SessionEvents - необязательные колбэки о состоянии устройства.
type SessionEvents struct {
	OnLost     func(Device)
	OnRestored func(Device)
	OnSwitched func(from, to Device)
}

// Session владеет одним активным устройством и непрерывно качает из него
// кадры. Инвариант: не более одного открытого потока; переключение устройства
// закрывает старый поток и открывает новый строго на границе кадра.
type Session struct {
	log    logrus.FieldLogger
	emit   func(Frame)
	open   streamOpener
	events SessionEvents
	chunk  int
	retry  time.Duration
	now    func() time.Time

	mu       sync.Mutex
	device   Device
	rms      float64
	lost     bool
	switchCh chan Device
}

// NewSession создаёт сессию захвата. emit вызывается для каждого кадра из
// горутины Run; кадр содержит собственную копию сэмплов.
func NewSession(device Device, chunk int, retry time.Duration, emit func(Frame), log logrus.FieldLogger) *Session {
	return &Session{
		log:      log,
		emit:     emit,
		open:     openPortAudio,
		chunk:    chunk,
		retry:    retry,
		now:      time.Now,
		device:   device,
		switchCh: make(chan Device, 1),
	}
}

// SetEvents устанавливает колбэки состояния. Вызывать до Run.
func (s *Session) SetEvents(ev SessionEvents) {
	s.events = ev
}

// SwitchTo просит сессию перейти на другое устройство. Безопасно вызывать
// конкурентно с захватом: команда применяется на следующей границе кадра.
// Повторная команда до применения заменяет предыдущую.
func (s *Session) SwitchTo(d Device) {
	for {
		select {
		case s.switchCh <- d:
			return
		default:
			select {
			case <-s.switchCh:
			default:
			}
		}
	}
}

// ActiveDevice возвращает текущее активное устройство.
func (s *Session) ActiveDevice() Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// LastRMS возвращает сглаженную громкость активного потока.
func (s *Session) LastRMS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rms
}

// Run качает кадры до отмены контекста. Ошибки устройства не фатальны:
// сессия перестаёт выдавать кадры, ждёт retry-интервал и переоткрывает то же
// устройство (режим круглосуточной записи).
func (s *Session) Run(ctx context.Context) {
	buf := make([]float32, s.chunk)

	for ctx.Err() == nil {
		dev := s.ActiveDevice()

		stream, err := s.open(dev, buf)
		if err != nil {
			s.handleLost(dev, err)
			if !s.waitRetry(ctx) {
				return
			}
			continue
		}
		if err := stream.Start(); err != nil {
			stream.Close()
			s.handleLost(dev, err)
			if !s.waitRetry(ctx) {
				return
			}
			continue
		}

		s.handleRestored(dev)
		s.readLoop(ctx, stream, dev, buf)
	}
}

// readLoop читает кадры из открытого потока до ошибки, переключения или
// отмены. Команда переключения проверяется между чтениями, поэтому кадры от
// двух устройств никогда не перемешиваются.
func (s *Session) readLoop(ctx context.Context, stream frameStream, dev Device, buf []float32) {
	defer func() {
		stream.Stop()
		stream.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case next := <-s.switchCh:
			if next.Index == dev.Index {
				continue
			}
			s.setDevice(next)
			s.log.Infof("Переключение микрофона: %s -> %s", dev.Name, next.Name)
			if s.events.OnSwitched != nil {
				s.events.OnSwitched(dev, next)
			}
			return
		default:
		}

		if err := stream.Read(); err != nil {
			s.handleLost(dev, err)
			s.waitRetry(ctx)
			return
		}

		samples := make([]float32, len(buf))
		copy(samples, buf)
		s.updateRMS(RMS(samples))
		s.emit(Frame{Samples: samples, Time: s.now(), Device: dev})
	}
}

func (s *Session) setDevice(d Device) {
	s.mu.Lock()
	s.device = d
	s.rms = 0
	s.mu.Unlock()
}

// updateRMS сглаживает громкость: мгновенная атака, медленный спад.
func (s *Session) updateRMS(rms float64) {
	s.mu.Lock()
	if rms >= s.rms {
		s.rms = rms
	} else {
		s.rms = 0.85*s.rms + 0.15*rms
	}
	s.mu.Unlock()
}

func (s *Session) handleLost(dev Device, err error) {
	s.mu.Lock()
	first := !s.lost
	s.lost = true
	s.mu.Unlock()

	if first {
		s.log.Warnf("Микрофон недоступен (%v). Повтор через %s...", err, s.retry)
		if s.events.OnLost != nil {
			s.events.OnLost(dev)
		}
	}
}

func (s *Session) handleRestored(dev Device) {
	s.mu.Lock()
	wasLost := s.lost
	s.lost = false
	s.mu.Unlock()

	if wasLost {
		s.log.Infof("Микрофон восстановлен: %s", dev.Name)
		if s.events.OnRestored != nil {
			s.events.OnRestored(dev)
		}
	}
}

// waitRetry ждёт retry-интервал; false если контекст отменён.
func (s *Session) waitRetry(ctx context.Context) bool {
	if s.retry <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.retry):
		return true
	}
}
