package segmenter

import (
	"testing"
	"time"

	"everec/internal/audio"
	"everec/internal/vad"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// frame строит кадр заданной длительности с постоянной амплитудой.
func frame(at time.Duration, dur time.Duration, amp float32) audio.Frame {
	n := int(dur.Seconds() * audio.SampleRate)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = amp
	}
	return audio.Frame{Samples: samples, Time: base.Add(at)}
}

func collect(cfg Config) (*Segmenter, *[]Segment) {
	var out []Segment
	s := New(vad.Energy{Threshold: 0.01}, cfg, func(seg Segment) {
		out = append(out, seg)
	})
	return s, &out
}

// Подаёт секундные кадры: voiced[i] определяет громкость i-го кадра.
func feed(s *Segmenter, sink string, voiced []bool) {
	for i, v := range voiced {
		amp := float32(0)
		if v {
			amp = 0.5
		}
		s.Push(frame(time.Duration(i)*time.Second, time.Second, amp), sink)
	}
}

func TestSilenceClosesSegment(t *testing.T) {
	s, out := collect(Config{MaxDuration: 20 * time.Second, MinSilence: 0})

	feed(s, "a", []bool{true, true, true, false})

	if len(*out) != 1 {
		t.Fatalf("segments = %d, want 1", len(*out))
	}
	seg := (*out)[0]
	if seg.Reason != ClosedBySilence {
		t.Errorf("reason = %q, want %q", seg.Reason, ClosedBySilence)
	}
	if !seg.Start.Equal(base) {
		t.Errorf("start = %v, want %v", seg.Start, base)
	}
	// Хвостовая тишина в сегмент не входит.
	if want := base.Add(3 * time.Second); !seg.End.Equal(want) {
		t.Errorf("end = %v, want %v", seg.End, want)
	}
	if want := 3 * audio.SampleRate; len(seg.Samples) != want {
		t.Errorf("samples = %d, want %d", len(seg.Samples), want)
	}
}

func TestShortSilenceKeepsSegmentOpen(t *testing.T) {
	s, out := collect(Config{MaxDuration: 20 * time.Second, MinSilence: 2 * time.Second})

	// Секунда тишины меньше окна в 2 секунды: сегмент продолжается.
	feed(s, "a", []bool{true, false, true})

	if len(*out) != 0 {
		t.Fatalf("segments = %d, want 0", len(*out))
	}
	if !s.Speaking() {
		t.Error("speaking = false, want true")
	}

	s.Push(frame(3*time.Second, time.Second, 0), "a")
	s.Push(frame(4*time.Second, time.Second, 0), "a")

	if len(*out) != 1 {
		t.Fatalf("segments = %d, want 1", len(*out))
	}
	// End остаётся на последнем озвученном кадре.
	if want := base.Add(3 * time.Second); !(*out)[0].End.Equal(want) {
		t.Errorf("end = %v, want %v", (*out)[0].End, want)
	}
}

func TestDurationCapSplits(t *testing.T) {
	s, out := collect(Config{MaxDuration: 20 * time.Second, MinSilence: 0})

	// 25 секунд непрерывной речи.
	voiced := make([]bool, 25)
	for i := range voiced {
		voiced[i] = true
	}
	feed(s, "a", voiced)
	s.Flush()

	if len(*out) != 2 {
		t.Fatalf("segments = %d, want 2", len(*out))
	}
	first, second := (*out)[0], (*out)[1]

	if first.Reason != ClosedByDurationCap {
		t.Errorf("first reason = %q, want %q", first.Reason, ClosedByDurationCap)
	}
	if first.Duration() > 20*time.Second {
		t.Errorf("first duration = %v, want <= 20s", first.Duration())
	}
	// Разрез без потери аудио: второй сегмент начинается там, где
	// закончился первый.
	if !second.Start.Equal(first.End) {
		t.Errorf("second start = %v, want %v", second.Start, first.End)
	}
	if want := base.Add(25 * time.Second); !second.End.Equal(want) {
		t.Errorf("second end = %v, want %v", second.End, want)
	}
	if first.Seq != 0 || second.Seq != 1 {
		t.Errorf("seq = %d,%d, want 0,1", first.Seq, second.Seq)
	}
	if total := len(first.Samples) + len(second.Samples); total != 25*audio.SampleRate {
		t.Errorf("total samples = %d, want %d", total, 25*audio.SampleRate)
	}
}

func TestCapNeverExceeded(t *testing.T) {
	s, out := collect(Config{MaxDuration: 20 * time.Second, MinSilence: 0})

	voiced := make([]bool, 100)
	for i := range voiced {
		voiced[i] = true
	}
	feed(s, "a", voiced)
	s.Flush()

	for i, seg := range *out {
		if seg.Duration() > 20*time.Second {
			t.Errorf("segment %d duration = %v, want <= 20s", i, seg.Duration())
		}
	}
	// Покрытие без дыр и перекрытий.
	for i := 1; i < len(*out); i++ {
		if !(*out)[i].Start.Equal((*out)[i-1].End) {
			t.Errorf("gap between segments %d and %d", i-1, i)
		}
	}
}

func TestRotationClosesSegment(t *testing.T) {
	s, out := collect(Config{MaxDuration: 20 * time.Second, MinSilence: 0})

	s.Push(frame(0, time.Second, 0.5), "a")
	s.Push(frame(time.Second, time.Second, 0.5), "a")
	// Архивный файл сменился посреди речи.
	s.Push(frame(2*time.Second, time.Second, 0.5), "b")
	s.Flush()

	if len(*out) != 2 {
		t.Fatalf("segments = %d, want 2", len(*out))
	}
	first, second := (*out)[0], (*out)[1]
	if first.Reason != ClosedByRotation {
		t.Errorf("first reason = %q, want %q", first.Reason, ClosedByRotation)
	}
	if first.Sink != "a" || second.Sink != "b" {
		t.Errorf("sinks = %q,%q, want a,b", first.Sink, second.Sink)
	}
	// Нумерация начинается заново в новом файле.
	if second.Seq != 0 {
		t.Errorf("second seq = %d, want 0", second.Seq)
	}
}

func TestSeqIncrementsWithinSink(t *testing.T) {
	s, out := collect(Config{MaxDuration: 20 * time.Second, MinSilence: 0})

	feed(s, "a", []bool{true, false, true, false, true, false})

	if len(*out) != 3 {
		t.Fatalf("segments = %d, want 3", len(*out))
	}
	for i, seg := range *out {
		if seg.Seq != i {
			t.Errorf("segment %d seq = %d, want %d", i, seg.Seq, i)
		}
	}
}

func TestFlushWithoutSpeech(t *testing.T) {
	s, out := collect(Config{MaxDuration: 20 * time.Second, MinSilence: 0})

	feed(s, "a", []bool{false, false})
	s.Flush()

	if len(*out) != 0 {
		t.Fatalf("segments = %d, want 0", len(*out))
	}
}
