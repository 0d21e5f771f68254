// Package arbiter реализует автоматическое переключение на более громкий
// микрофон: периодическое сканирование кандидатов с гистерезисом
// (подтверждения подряд) и глобальным кулдауном против осцилляции.
package arbiter

import (
	"time"

	"everec/internal/audio"
)

// Rules - правила принятия решения о переключении.
type Rules struct {
	// MinRMS - минимальная абсолютная громкость кандидата.
	MinRMS float64
	// MinRatio - во сколько раз кандидат должен быть громче активного
	// устройства. Проверяется только когда активное само громче MinRMS.
	MinRatio float64
	// Confirmations - сколько циклов подряд кандидат должен побеждать.
	Confirmations int
	// Cooldown - минимальная пауза между переключениями. Один таймер на
	// сессию, не на кандидата.
	Cooldown time.Duration
}

// Decider - явная машина состояний подтверждений: счётчик текущего
// кандидата плюс глобальный таймер кулдауна. Не потокобезопасен, владелец -
// цикл сканирования.
type Decider struct {
	rules      Rules
	candidate  int // индекс устройства-кандидата, -1 если нет
	hits       int
	lastSwitch time.Time
}

// NewDecider создаёт машину состояний с заданными правилами.
func NewDecider(rules Rules) *Decider {
	if rules.Confirmations < 1 {
		rules.Confirmations = 1
	}
	if rules.MinRatio < 1 {
		rules.MinRatio = 1
	}
	return &Decider{rules: rules, candidate: -1}
}

// CoolingDown возвращает true пока кулдаун после переключения не истёк.
func (d *Decider) CoolingDown(now time.Time) bool {
	if d.lastSwitch.IsZero() || d.rules.Cooldown <= 0 {
		return false
	}
	return now.Sub(d.lastSwitch) < d.rules.Cooldown
}

// Reset сбрасывает счётчик кандидата (цикл без победителя).
func (d *Decider) Reset() {
	d.candidate = -1
	d.hits = 0
}

// Observe учитывает лучший результат цикла сканирования и возвращает true
// когда пора переключаться. Победа кандидата: RMS выше абсолютного порога и
// выше активного с запасом MinRatio. Любой не-победный цикл обнуляет счётчик;
// смена лучшего кандидата начинает счёт заново.
func (d *Decider) Observe(now time.Time, best audio.Score, activeRMS float64) bool {
	if best.RMS < d.rules.MinRMS {
		d.Reset()
		return false
	}
	if activeRMS >= d.rules.MinRMS && best.RMS < activeRMS*d.rules.MinRatio {
		d.Reset()
		return false
	}

	if d.candidate == best.Device.Index {
		d.hits++
	} else {
		d.candidate = best.Device.Index
		d.hits = 1
	}

	if d.hits < d.rules.Confirmations || d.CoolingDown(now) {
		return false
	}

	d.lastSwitch = now
	d.Reset()
	return true
}
