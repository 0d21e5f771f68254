package audio

import (
	"fmt"
	"sync"
	"time"
)

// probeBackoff - пауза перед повторной пробой сбойного устройства.
const probeBackoff = 30 * time.Second

// Score - результат пробы кандидата: громкость за окно прослушивания.
// Живёт один цикл арбитража, не сохраняется.
type Score struct {
	Device Device
	RMS    float64
	At     time.Time
}

// Prober открывает короткоживущий независимый поток на устройстве-кандидате
// и измеряет громкость, не трогая активную сессию захвата.
type Prober struct {
	duration time.Duration
	open     streamOpener
	now      func() time.Time

	mu      sync.Mutex
	backoff map[int]time.Time
}

// NewProber создаёт пробник с заданным окном прослушивания.
func NewProber(duration time.Duration) *Prober {
	return &Prober{
		duration: duration,
		open:     openPortAudio,
		now:      time.Now,
		backoff:  make(map[int]time.Time),
	}
}

// Probe измеряет RMS устройства за окно прослушивания. Сбойные устройства
// получают бэкофф и до его истечения возвращают ErrDeviceUnavailable.
func (p *Prober) Probe(dev Device) (Score, error) {
	if p.duration <= 0 {
		return Score{}, fmt.Errorf("%w: нулевое окно пробы", ErrDeviceUnavailable)
	}

	p.mu.Lock()
	until, backing := p.backoff[dev.Index]
	now := p.now()
	p.mu.Unlock()
	if backing && now.Before(until) {
		return Score{}, fmt.Errorf("%w: бэкофф после сбоя пробы", ErrDeviceUnavailable)
	}

	frames := int(float64(SampleRate) * p.duration.Seconds())
	if frames < 1 {
		frames = 1
	}
	buf := make([]float32, frames)

	stream, err := p.open(dev, buf)
	if err != nil {
		p.markFailed(dev)
		return Score{}, fmt.Errorf("проба %q: %w", dev.Name, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		p.markFailed(dev)
		return Score{}, fmt.Errorf("проба %q: %w", dev.Name, err)
	}
	defer stream.Stop()

	if err := stream.Read(); err != nil {
		p.markFailed(dev)
		return Score{}, fmt.Errorf("проба %q: %w", dev.Name, err)
	}

	return Score{Device: dev, RMS: RMS(buf), At: p.now()}, nil
}

func (p *Prober) markFailed(dev Device) {
	p.mu.Lock()
	p.backoff[dev.Index] = p.now().Add(probeBackoff)
	p.mu.Unlock()
}
