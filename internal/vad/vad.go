// Package vad предоставляет пер-кадровую классификацию речь/тишина.
package vad

import "everec/internal/audio"

// Classifier - чистая функция от окна аудио к решению речь/тишина.
// Реализации не хранят состояние между вызовами: всю последовательность
// ведёт сегментатор.
type Classifier interface {
	Classify(samples []float32) bool
}

// Energy классифицирует окно по среднеквадратичной громкости.
type Energy struct {
	// Threshold - минимальный RMS, при котором окно считается речью.
	Threshold float64
}

// Classify возвращает true если окно громче порога.
func (e Energy) Classify(samples []float32) bool {
	return audio.RMS(samples) >= e.Threshold
}
