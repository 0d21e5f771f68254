// Package speech предоставляет абстракцию для движков распознавания речи.
package speech

import (
	"context"
	"errors"
)

// Engine тип движка распознавания.
type Engine string

const (
	// EngineWhisper - whisper.cpp движок.
	EngineWhisper Engine = "whisper"
	// EngineVosk - Vosk движок.
	EngineVosk Engine = "vosk"
	// EngineOpenAI - облачный движок OpenAI audio/transcriptions.
	EngineOpenAI Engine = "openai"
)

// Result - результат распознавания: текст и определённый язык.
type Result struct {
	Text     string
	Language string
}

// Recognizer - интерфейс для движков распознавания речи.
type Recognizer interface {
	// Transcribe распознаёт речь из аудио сэмплов.
	// samples - аудио данные в формате float32, 16kHz, mono.
	// lang - язык распознавания ("ru", "en", "auto" для автоопределения).
	Transcribe(ctx context.Context, samples []float32, lang string) (Result, error)

	// Close освобождает ресурсы движка.
	Close()

	// Name возвращает название движка (для логирования).
	Name() string
}

// PermanentError помечает ошибку распознавания как неустранимую:
// повторять вызов бессмысленно.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent оборачивает ошибку как неустранимую.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent возвращает true для неустранимых ошибок распознавания.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
