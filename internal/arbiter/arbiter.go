package arbiter

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"everec/internal/audio"
)

// Prober измеряет громкость устройства-кандидата.
type Prober interface {
	Probe(dev audio.Device) (audio.Score, error)
}

// Session - активная сессия захвата, которой командует арбитр.
type Session interface {
	ActiveDevice() audio.Device
	LastRMS() float64
	SwitchTo(dev audio.Device)
}

// Lister перечисляет подходящие входные устройства.
type Lister func() ([]audio.Device, error)

// Config - настройки цикла сканирования.
type Config struct {
	Rules Rules
	// ScanInterval - период сканирования.
	ScanInterval time.Duration
	// MaxCandidates - сколько кандидатов пробовать за цикл (round-robin).
	MaxCandidates int
}

// Arbiter периодически пробует альтернативные устройства и командует
// переключение. Проба открывает независимый поток и не трогает активную
// сессию; сканирование приостанавливается пока открыт речевой сегмент, чтобы
// переключение не попало в середину фразы.
type Arbiter struct {
	cfg      Config
	decider  *Decider
	list     Lister
	prober   Prober
	session  Session
	speaking func() bool
	log      logrus.FieldLogger
	now      func() time.Time

	rrOffset int
}

// New создаёт арбитр. speaking может быть nil.
func New(cfg Config, list Lister, prober Prober, session Session, speaking func() bool, log logrus.FieldLogger) *Arbiter {
	if cfg.MaxCandidates < 1 {
		cfg.MaxCandidates = 1
	}
	return &Arbiter{
		cfg:      cfg,
		decider:  NewDecider(cfg.Rules),
		list:     list,
		prober:   prober,
		session:  session,
		speaking: speaking,
		log:      log,
		now:      time.Now,
	}
}

// Run выполняет сканирование с фиксированным интервалом до отмены контекста.
func (a *Arbiter) Run(ctx context.Context) {
	if a.cfg.ScanInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Scan()
		}
	}
}

// Scan выполняет один цикл арбитража.
func (a *Arbiter) Scan() {
	now := a.now()

	if a.speaking != nil && a.speaking() {
		a.decider.Reset()
		return
	}
	if a.decider.CoolingDown(now) {
		return
	}

	active := a.session.ActiveDevice()
	candidates, err := a.list()
	if err != nil {
		a.log.Debugf("Арбитраж: перечисление устройств: %v", err)
		return
	}
	eligible := candidates[:0]
	for _, d := range candidates {
		if d.Index != active.Index {
			eligible = append(eligible, d)
		}
	}
	if len(eligible) == 0 {
		a.decider.Reset()
		return
	}

	best, ok := a.probeRound(eligible)
	if !ok {
		a.decider.Reset()
		return
	}

	if !a.decider.Observe(now, best, a.session.LastRMS()) {
		return
	}

	a.log.Infof("Арбитраж: кандидат %q громче активного (rms %.5f), переключаемся", best.Device.Name, best.RMS)
	a.session.SwitchTo(best.Device)
}

// probeRound пробует до MaxCandidates устройств по кругу и возвращает самое
// громкое.
func (a *Arbiter) probeRound(eligible []audio.Device) (audio.Score, bool) {
	n := len(eligible)
	count := a.cfg.MaxCandidates
	if count > n {
		count = n
	}
	start := a.rrOffset % n
	a.rrOffset = (start + count) % n
	if count == n {
		a.rrOffset = 0
	}

	var best audio.Score
	found := false
	for i := 0; i < count; i++ {
		dev := eligible[(start+i)%n]
		score, err := a.prober.Probe(dev)
		if err != nil {
			a.log.Debugf("Арбитраж: проба %q: %v", dev.Name, err)
			continue
		}
		if !found || score.RMS > best.RMS {
			best = score
			found = true
		}
	}
	return best, found
}
