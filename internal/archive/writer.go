package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"

	"everec/internal/audio"
)

// Config - настройки архиватора.
type Config struct {
	// Dir - корневая директория записей.
	Dir string
	// Prefix - префикс имён файлов.
	Prefix string
	// SegmentDuration - длина одного архивного файла.
	SegmentDuration time.Duration
	// TotalDuration - общая длительность записи; по её истечении новый
	// файл не открывается.
	TotalDuration time.Duration
}

// Meta - метаданные, попадающие в каждый sidecar-документ.
type Meta struct {
	InputDevice string
	AutoSwitch  bool
	ASREnabled  bool
	ASRModel    string
	ASREngine   string
}

// Writer владеет текущим аудио файлом и ротирует его по времени.
// Sidecar-документы живут дольше своих файлов: результаты распознавания
// могут приходить после ротации.
type Writer struct {
	cfg  Config
	meta Meta
	log  logrus.FieldLogger
	now  func() time.Time

	mu        sync.Mutex
	start     time.Time
	file      *os.File
	enc       *wav.Encoder
	sinkID    string
	sinkStart time.Time
	sidecars  map[string]*Sidecar
	done      bool
}

// NewWriter создаёт архиватор и открывает первый файл.
func NewWriter(cfg Config, meta Meta, log logrus.FieldLogger) (*Writer, error) {
	return newWriter(cfg, meta, log, time.Now)
}

func newWriter(cfg Config, meta Meta, log logrus.FieldLogger, now func() time.Time) (*Writer, error) {
	w := &Writer{
		cfg:      cfg,
		meta:     meta,
		log:      log,
		now:      now,
		sidecars: make(map[string]*Sidecar),
	}
	w.start = w.now()
	if err := w.openSink(); err != nil {
		return nil, err
	}
	return w, nil
}

// CurrentSinkID возвращает идентификатор открытого архивного файла.
// Пустая строка после завершения записи.
func (w *Writer) CurrentSinkID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sinkID
}

// Done возвращает true когда общая длительность записи исчерпана.
func (w *Writer) Done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Append пишет кадр в текущий файл, ротируя его по расписанию.
// Возвращает done=true когда общая длительность исчерпана; кадр при этом
// не записывается. Ошибка записи не фатальна для захвата - вызывающий
// логирует и продолжает.
func (w *Writer) Append(f audio.Frame) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return true, nil
	}

	now := w.now()
	if w.cfg.TotalDuration > 0 && now.Sub(w.start) >= w.cfg.TotalDuration {
		err := w.closeSinkLocked()
		w.done = true
		return true, err
	}
	if now.Sub(w.sinkStart) >= w.cfg.SegmentDuration {
		if err := w.closeSinkLocked(); err != nil {
			w.log.Errorf("Ошибка закрытия архивного файла: %v", err)
		}
		if err := w.openSink(); err != nil {
			return false, fmt.Errorf("ротация архива: %w", err)
		}
	}

	data := make([]int, len(f.Samples))
	for i, s := range f.Samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		data[i] = int(s * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: audio.Channels, SampleRate: audio.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := w.enc.Write(buf); err != nil {
		return false, fmt.Errorf("запись в архив: %w", err)
	}
	return false, nil
}

// Sidecar возвращает sidecar-документ архивного файла (nil если нет).
func (w *Writer) Sidecar(sinkID string) *Sidecar {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sidecars[sinkID]
}

// AppendTranscript добавляет результат распознавания в sidecar файла.
func (w *Writer) AppendTranscript(sinkID string, e Entry) error {
	sc := w.Sidecar(sinkID)
	if sc == nil {
		return fmt.Errorf("sidecar не найден: %s", sinkID)
	}
	return sc.AppendEntry(e)
}

// Close закрывает текущий файл (остановка записи).
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	err := w.closeSinkLocked()
	w.done = true
	return err
}

// FinalizeSidecars пересчитывает статусы всех sidecar-документов.
// Вызывается после дообработки очереди распознавания.
func (w *Writer) FinalizeSidecars() {
	w.mu.Lock()
	sidecars := make([]*Sidecar, 0, len(w.sidecars))
	for _, sc := range w.sidecars {
		sidecars = append(sidecars, sc)
	}
	w.mu.Unlock()

	for _, sc := range sidecars {
		if err := sc.MarkClosed(); err != nil {
			w.log.Errorf("Ошибка финализации sidecar: %v", err)
		}
	}
}

// openSink открывает новый WAV файл в папке дня. Вызывается под mu.
func (w *Writer) openSink() error {
	now := w.now()
	dayDir := filepath.Join(w.cfg.Dir, now.Format("20060102"))
	if err := os.MkdirAll(dayDir, 0755); err != nil {
		return fmt.Errorf("создание директории записей: %w", err)
	}

	name := fmt.Sprintf("%s_live_%s.wav", w.cfg.Prefix, now.Format("20060102_150405"))
	path := filepath.Join(dayDir, name)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("создание архивного файла: %w", err)
	}

	sinkID := strings.TrimSuffix(name, ".wav")
	sidecarPath := strings.TrimSuffix(path, ".wav") + ".json"
	sc, err := newSidecar(sidecarPath, path, now, w.meta)
	if err != nil {
		file.Close()
		return fmt.Errorf("создание sidecar: %w", err)
	}

	w.file = file
	w.enc = wav.NewEncoder(file, audio.SampleRate, 16, audio.Channels, 1)
	w.sinkID = sinkID
	w.sinkStart = now
	w.sidecars[sinkID] = sc

	w.log.Infof("Открыт архивный файл %s", path)
	return nil
}

// closeSinkLocked закрывает текущий файл и помечает его sidecar.
// Вызывается под mu.
func (w *Writer) closeSinkLocked() error {
	if w.file == nil {
		return nil
	}
	sc := w.sidecars[w.sinkID]

	var firstErr error
	if err := w.enc.Close(); err != nil {
		firstErr = err
	}
	if err := w.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	w.file = nil
	w.enc = nil
	w.sinkID = ""

	if sc != nil {
		if err := sc.MarkClosed(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
