// Package archive пишет аудио в ротируемые WAV файлы и ведёт sidecar-документ
// на каждый архивный сегмент.
package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Статусы sidecar-документа.
const (
	StatusRecording  = "recording"
	StatusOK         = "ok"
	StatusNoSpeech   = "no_speech"
	StatusNoText     = "no_text"
	StatusFailed     = "failed"
	StatusPendingASR = "pending_asr"
)

// Статусы записей о речевых сегментах.
const (
	EntryOK     = "ok"
	EntryNoText = "no_text"
	EntryFailed = "failed"
)

// Entry - запись о распознанном речевом сегменте.
type Entry struct {
	Start    time.Time
	End      time.Time
	Language string
	Text     string
	Status   string
}

type entryDoc struct {
	StartTimeISO string `json:"start_time_iso"`
	EndTimeISO   string `json:"end_time_iso"`
	Language     string `json:"language,omitempty"`
	Text         string `json:"text"`
	Status       string `json:"status"`
}

type sidecarDoc struct {
	AudioFile        string     `json:"audio_file"`
	AudioPath        string     `json:"audio_path"`
	SegmentStart     string     `json:"segment_start"`
	SegmentStartTime string     `json:"segment_start_time"`
	CreatedAt        string     `json:"created_at"`
	InputDevice      string     `json:"input_device"`
	AutoSwitchDevice bool       `json:"auto_switch_device"`
	ASREnabled       bool       `json:"asr_enabled"`
	ASRMode          string     `json:"asr_mode"`
	Model            string     `json:"model,omitempty"`
	Backend          string     `json:"backend,omitempty"`
	Status           string     `json:"status"`
	SpeechSegments   []entryDoc `json:"speech_segments"`
	Language         string     `json:"language"`
	Text             string     `json:"text"`
}

// Sidecar - метаданные одного архивного файла. Записи о сегментах
// добавляются инкрементально; каждая запись сохраняется на диск атомарно,
// чтобы сбой процесса не терял уже распознанный текст.
type Sidecar struct {
	mu        sync.Mutex
	path      string
	doc       sidecarDoc
	submitted int
	completed int
	hadSpeech bool
	closed    bool
}

func newSidecar(path string, audioPath string, start time.Time, meta Meta) (*Sidecar, error) {
	mode := "disabled"
	if meta.ASREnabled {
		mode = "live"
	}
	s := &Sidecar{
		path: path,
		doc: sidecarDoc{
			AudioFile:        filepath.Base(audioPath),
			AudioPath:        absPath(audioPath),
			SegmentStart:     start.Format("20060102_150405"),
			SegmentStartTime: start.Format(time.RFC3339),
			CreatedAt:        time.Now().Format(time.RFC3339),
			InputDevice:      meta.InputDevice,
			AutoSwitchDevice: meta.AutoSwitch,
			ASREnabled:       meta.ASREnabled,
			ASRMode:          mode,
			Model:            meta.ASRModel,
			Backend:          meta.ASREngine,
			Status:           StatusRecording,
			SpeechSegments:   []entryDoc{},
		},
	}
	return s, s.write()
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// NoteSpeech отмечает, что в файле была речь.
func (s *Sidecar) NoteSpeech() {
	s.mu.Lock()
	s.hadSpeech = true
	s.mu.Unlock()
}

// NoteSubmitted отмечает, что сегмент файла отправлен на распознавание.
func (s *Sidecar) NoteSubmitted() {
	s.mu.Lock()
	s.submitted++
	s.mu.Unlock()
}

// Pending возвращает число сегментов, ожидающих результата.
func (s *Sidecar) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted - s.completed
}

// AppendEntry добавляет результат распознавания сегмента и пересчитывает
// агрегаты. Записи приходят в порядке отправки сегментов (порядок
// гарантирует диспетчер), в том числе после ротации файла.
func (s *Sidecar) AppendEntry(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed++
	s.doc.SpeechSegments = append(s.doc.SpeechSegments, entryDoc{
		StartTimeISO: e.Start.Format(time.RFC3339),
		EndTimeISO:   e.End.Format(time.RFC3339),
		Language:     e.Language,
		Text:         e.Text,
		Status:       e.Status,
	})

	var texts []string
	langs := map[string]bool{}
	for _, seg := range s.doc.SpeechSegments {
		if seg.Text != "" {
			texts = append(texts, seg.Text)
		}
		if seg.Language != "" {
			langs[seg.Language] = true
		}
	}
	s.doc.Text = strings.Join(texts, "\n")
	s.doc.Language = joinSorted(langs)
	s.doc.Status = s.status()
	return s.write()
}

// MarkClosed фиксирует финальный статус после закрытия аудио файла.
// Поздние записи (ASR догоняет после ротации) статус ещё уточнят.
func (s *Sidecar) MarkClosed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.doc.Status = s.status()
	return s.write()
}

// status вычисляет статус документа. Вызывается под mu.
func (s *Sidecar) status() string {
	if !s.closed {
		return StatusRecording
	}
	if s.doc.Text != "" {
		return StatusOK
	}
	if !s.hadSpeech {
		return StatusNoSpeech
	}
	if s.submitted > s.completed {
		return StatusPendingASR
	}
	if !s.doc.ASREnabled {
		return StatusPendingASR
	}
	if len(s.doc.SpeechSegments) > 0 && allFailed(s.doc.SpeechSegments) {
		return StatusFailed
	}
	return StatusNoText
}

func allFailed(entries []entryDoc) bool {
	for _, e := range entries {
		if e.Status != EntryFailed {
			return false
		}
	}
	return true
}

func joinSorted(set map[string]bool) string {
	if len(set) == 0 {
		return ""
	}
	langs := make([]string, 0, len(set))
	for l := range set {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return strings.Join(langs, ", ")
}

// write сохраняет документ атомарно: запись во временный файл + rename.
// Вызывается под mu.
func (s *Sidecar) write() error {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
