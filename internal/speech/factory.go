package speech

import (
	"fmt"

	"everec/internal/models"
)

// Options - параметры создания распознавателя.
type Options struct {
	// Engine - тип движка (whisper, vosk, openai).
	Engine Engine
	// ModelID - ID модели из реестра (для локальных движков).
	ModelID string
	// APIKey - ключ для облачного движка.
	APIKey string
	// APIModel - имя модели облачного API.
	APIModel string
}

// NewRecognizer создаёт распознаватель по параметрам. Локальные движки
// требуют скачанную модель из реестра.
func NewRecognizer(opts Options, manager *models.Manager) (Recognizer, error) {
	switch opts.Engine {
	case EngineWhisper, EngineVosk:
		info, ok := models.GetModel(opts.ModelID)
		if !ok {
			return nil, fmt.Errorf("модель не найдена: %s", opts.ModelID)
		}
		if !manager.IsDownloaded(info) {
			return nil, fmt.Errorf("модель не скачана: %s (используйте -download-model %s)", info.Name, info.ID)
		}
		modelPath := manager.GetModelPath(info)

		var rec Recognizer
		var err error
		switch info.Engine {
		case models.EngineWhisper:
			rec, err = NewWhisperFromFile(modelPath)
		case models.EngineVosk:
			rec, err = NewVosk(modelPath)
		default:
			return nil, fmt.Errorf("неизвестный движок модели: %s", info.Engine)
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка создания распознавателя: %w", err)
		}
		return rec, nil

	case EngineOpenAI:
		return NewOpenAI(opts.APIKey, opts.APIModel)

	default:
		return nil, fmt.Errorf("неизвестный движок: %s", opts.Engine)
	}
}
