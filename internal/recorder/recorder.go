// Package recorder связывает захват, архивацию, сегментацию речи,
// автопереключение устройств и распознавание в один цикл непрерывной записи.
package recorder

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"everec/internal/arbiter"
	"everec/internal/archive"
	"everec/internal/audio"
	"everec/internal/config"
	"everec/internal/dispatch"
	"everec/internal/notify"
	"everec/internal/ringbuf"
	"everec/internal/segmenter"
	"everec/internal/speech"
	"everec/internal/vad"
)

// queueWarnDepth - глубина очереди ASR, с которой начинаются предупреждения:
// распознавание не успевает за записью.
const queueWarnDepth = 16

// Recorder - работающая сессия непрерывной записи.
type Recorder struct {
	cfg      *config.Config
	rec      speech.Recognizer
	notifier *notify.Notifier
	log      logrus.FieldLogger
}

// New создаёт рекордер. rec может быть nil когда распознавание выключено.
func New(cfg *config.Config, rec speech.Recognizer, notifier *notify.Notifier, log logrus.FieldLogger) *Recorder {
	return &Recorder{cfg: cfg, rec: rec, notifier: notifier, log: log}
}

// Run ведёт запись до отмены контекста или исчерпания общей длительности.
func (r *Recorder) Run(ctx context.Context) error {
	cfg := r.cfg

	dev, err := audio.Resolve(cfg.Device, cfg.ExcludedInputKeywords)
	if err != nil {
		return fmt.Errorf("выбор устройства: %w", err)
	}
	r.log.Infof("Устройство ввода: [%d] %s", dev.Index, dev.Name)

	writer, err := archive.NewWriter(archive.Config{
		Dir:             cfg.OutputDir,
		Prefix:          cfg.Prefix,
		SegmentDuration: cfg.SegmentDuration(),
		TotalDuration:   cfg.TotalDuration(),
	}, archive.Meta{
		InputDevice: dev.Name,
		AutoSwitch:  cfg.AutoSwitch,
		ASREnabled:  cfg.ASREnabled && r.rec != nil,
		ASRModel:    cfg.ASRModel,
		ASREngine:   cfg.ASREngine,
	}, r.log)
	if err != nil {
		return fmt.Errorf("архиватор: %w", err)
	}

	var dispatcher *dispatch.Dispatcher
	if cfg.ASREnabled && r.rec != nil {
		dispatcher = dispatch.New(dispatch.Config{
			Workers:    cfg.ASRConcurrency,
			MaxRetries: cfg.ASRRetries,
			Backoff:    cfg.DeviceRetry(),
			Language:   cfg.ASRLanguage,
		}, r.rec, writer, r.log)
	}

	seg := segmenter.New(
		vad.Energy{Threshold: cfg.VADThreshold},
		segmenter.Config{MaxDuration: cfg.MaxSpeechDuration(), MinSilence: cfg.MinSilence()},
		func(s segmenter.Segment) { r.handleSegment(writer, dispatcher, s) },
	)

	// Фан-аут кадров: архиватор и сегментатор читают независимыми курсорами,
	// медленный потребитель не тормозит захват.
	ring := ringbuf.New[audio.Frame](cfg.RingFrames)

	chunk := audio.SampleRate * cfg.ChunkMS / 1000
	session := audio.NewSession(dev, chunk, cfg.DeviceRetry(), ring.Push, r.log)
	session.SetEvents(audio.SessionEvents{
		OnLost:     func(d audio.Device) { r.notifier.DeviceLost(d.Name) },
		OnRestored: func(d audio.Device) { r.notifier.DeviceRestored(d.Name) },
		OnSwitched: func(from, to audio.Device) { r.notifier.DeviceSwitched(from.Name, to.Name) },
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	// Архиватор: сырой поток кадров в ротируемые WAV файлы. Исчерпание
	// общей длительности останавливает всю запись.
	wg.Add(1)
	go func() {
		defer wg.Done()
		reader := ring.NewReader()
		for {
			f, dropped, ok := reader.Next()
			if !ok {
				return
			}
			if dropped > 0 {
				r.log.Warnf("Архиватор отстал: потеряно кадров: %d", dropped)
			}
			done, err := writer.Append(f)
			if err != nil {
				r.log.Errorf("Ошибка записи аудио: %v", err)
			}
			if done {
				r.log.Info("Общая длительность записи исчерпана")
				cancel()
				return
			}
		}
	}()

	// Сегментатор: классификация кадров и сборка речевых сегментов.
	wg.Add(1)
	go func() {
		defer wg.Done()
		reader := ring.NewReader()
		for {
			f, dropped, ok := reader.Next()
			if !ok {
				seg.Flush()
				return
			}
			if dropped > 0 {
				r.log.Warnf("Сегментатор отстал: потеряно кадров: %d", dropped)
			}
			seg.Push(f, writer.CurrentSinkID())
		}
	}()

	if cfg.AutoSwitch {
		prober := audio.NewProber(cfg.ProbeDuration())
		lister := func() ([]audio.Device, error) {
			return audio.EligibleInputs(cfg.ExcludedInputKeywords)
		}
		arb := arbiter.New(arbiter.Config{
			Rules: arbiter.Rules{
				MinRMS:        cfg.MinRMS,
				MinRatio:      cfg.MinRatio,
				Confirmations: cfg.Confirmations,
				Cooldown:      cfg.Cooldown(),
			},
			ScanInterval:  cfg.ScanInterval(),
			MaxCandidates: cfg.MaxCandidatesPerScan,
		}, lister, prober, session, seg.Speaking, r.log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			arb.Run(runCtx)
		}()
	}

	r.notifier.Started(dev.Name)
	session.Run(runCtx)

	// Захват остановлен: дочитываем буфер, закрываем файл, дожидаемся ASR.
	ring.Close()
	wg.Wait()

	if err := writer.Close(); err != nil {
		r.log.Errorf("Ошибка закрытия архива: %v", err)
	}
	if dispatcher != nil {
		if depth := dispatcher.QueueDepth(); depth > 0 {
			r.log.Infof("Ожидание очереди распознавания: %d сегментов", depth)
		}
		dispatcher.Drain(cfg.DrainTimeout())
	}
	writer.FinalizeSidecars()
	r.notifier.Finished()
	r.log.Info("Запись завершена")
	return nil
}

// handleSegment регистрирует закрытый речевой сегмент в sidecar его архивного
// файла и ставит его в очередь распознавания.
func (r *Recorder) handleSegment(writer *archive.Writer, dispatcher *dispatch.Dispatcher, s segmenter.Segment) {
	if s.Sink == "" {
		// Кадры, дочитанные после закрытия последнего архивного файла.
		return
	}
	r.log.Debugf("Речевой сегмент #%d (%s, %s): %s", s.Seq, s.Sink, s.Duration(), s.Reason)

	sc := writer.Sidecar(s.Sink)
	if sc != nil {
		sc.NoteSpeech()
	}
	if dispatcher == nil {
		return
	}
	if sc != nil {
		sc.NoteSubmitted()
	}
	dispatcher.Submit(s)
	if depth := dispatcher.QueueDepth(); depth >= queueWarnDepth {
		r.log.Warnf("Очередь распознавания растёт: %d сегментов", depth)
	}
}
