package speech

import (
	"context"
	"io"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperRecognizer реализует Recognizer через whisper.cpp.
type WhisperRecognizer struct {
	mu    sync.Mutex
	model whisper.Model
}

// NewWhisperFromFile создаёт WhisperRecognizer из файла модели.
func NewWhisperFromFile(modelPath string) (*WhisperRecognizer, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		// Модель не загрузилась - повторные попытки не помогут.
		return nil, Permanent(err)
	}

	return &WhisperRecognizer{
		model: model,
	}, nil
}

// Name возвращает название движка.
func (w *WhisperRecognizer) Name() string {
	return "whisper"
}

// Transcribe распознаёт речь из аудио сэмплов.
func (w *WhisperRecognizer) Transcribe(ctx context.Context, samples []float32, lang string) (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return Result{}, err
	}

	// Отключаем перевод - только транскрипция
	wctx.SetTranslate(false)

	// Устанавливаем язык (для "auto" включится автодетект)
	if lang != "" {
		wctx.SetLanguage(lang)
	}

	// Обрабатываем аудио
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return Result{}, err
	}

	// Собираем результат из сегментов
	var result strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, err
		}
		result.WriteString(segment.Text)
	}

	detected := lang
	if lang == "" || lang == "auto" {
		detected = wctx.DetectedLanguage()
	}

	return Result{
		Text:     strings.TrimSpace(result.String()),
		Language: detected,
	}, nil
}

// Close освобождает ресурсы.
func (w *WhisperRecognizer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model != nil {
		w.model.Close()
		w.model = nil
	}
}
