// Package segmenter собирает непрерывные речевые интервалы из потока кадров
// в ограниченные по длительности сегменты.
package segmenter

import (
	"sync"
	"time"

	"everec/internal/audio"
	"everec/internal/vad"
)

// CloseReason - терминальное состояние закрытого сегмента.
type CloseReason string

const (
	// ClosedBySilence - закрыт по тишине после речи.
	ClosedBySilence CloseReason = "silence"
	// ClosedByDurationCap - принудительный разрез по достижении потолка длительности.
	ClosedByDurationCap CloseReason = "duration_cap"
	// ClosedByRotation - закрыт из-за ротации архивного файла.
	ClosedByRotation CloseReason = "archive_rotation"
)

// Segment - закрытый речевой сегмент. После закрытия неизменяем и передаётся
// диспетчеру по значению; сегментатор к нему не возвращается.
type Segment struct {
	// Sink - идентификатор архивного файла, которому принадлежит сегмент.
	Sink string
	// Seq - порядковый номер внутри архивного файла (с нуля).
	Seq int
	// Start/End - абсолютные метки времени; End равен концу последнего
	// озвученного кадра, хвостовая тишина не входит.
	Start time.Time
	End   time.Time
	// Samples - озвученные кадры подряд.
	Samples []float32
	Reason  CloseReason
}

// Duration возвращает длительность сегмента.
func (s Segment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Config - настройки сегментации.
type Config struct {
	// MaxDuration - потолок длительности сегмента (принудительный разрез).
	MaxDuration time.Duration
	// MinSilence - сколько тишины подряд закрывает сегмент.
	// Ноль закрывает на первом же тихом кадре.
	MinSilence time.Duration
}

// Segmenter ведёт не более одного открытого сегмента. Кадры классифицируются
// пер-кадрово; тихие кадры в сегмент не попадают.
type Segmenter struct {
	classify vad.Classifier
	cfg      Config
	emit     func(Segment)

	mu           sync.Mutex
	cur          *Segment
	sink         string
	seq          int
	silenceSince time.Time
}

// New создаёт сегментатор. emit вызывается синхронно для каждого закрытого
// сегмента.
func New(classifier vad.Classifier, cfg Config, emit func(Segment)) *Segmenter {
	return &Segmenter{classify: classifier, cfg: cfg, emit: emit}
}

// Speaking возвращает true если сегмент сейчас открыт.
func (s *Segmenter) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// Push обрабатывает очередной кадр. sink - идентификатор текущего архивного
// файла: его смена закрывает открытый сегмент ротацией, чтобы ни один сегмент
// не охватывал два архивных файла.
func (s *Segmenter) Push(f audio.Frame, sink string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil && s.cur.Sink != sink {
		s.close(ClosedByRotation)
	}
	if s.sink != sink {
		s.sink = sink
		s.seq = 0
	}

	if s.classify.Classify(f.Samples) {
		s.silenceSince = time.Time{}
		if s.cur != nil && f.Time.Sub(s.cur.Start) >= s.cfg.MaxDuration {
			// Принудительный разрез: новый сегмент открывается на этом же
			// кадре, аудио через границу не теряется.
			s.close(ClosedByDurationCap)
		}
		if s.cur == nil {
			s.cur = &Segment{Sink: sink, Seq: s.seq, Start: f.Time}
			s.seq++
		}
		s.cur.Samples = append(s.cur.Samples, f.Samples...)
		s.cur.End = f.End()
		return
	}

	if s.cur == nil {
		return
	}
	if s.silenceSince.IsZero() {
		s.silenceSince = f.Time
	}
	if f.End().Sub(s.silenceSince) >= s.cfg.MinSilence {
		s.close(ClosedBySilence)
	}
}

// Flush закрывает открытый сегмент как по тишине (остановка записи).
func (s *Segmenter) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		s.close(ClosedBySilence)
	}
}

// close финализирует текущий сегмент и отдаёт его по значению.
// Вызывается под mu.
func (s *Segmenter) close(reason CloseReason) {
	seg := *s.cur
	seg.Reason = reason
	s.cur = nil
	s.silenceSince = time.Time{}
	s.emit(seg)
}
