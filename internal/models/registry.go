// Package models управляет моделями распознавания речи.
package models

// Engine тип движка распознавания.
type Engine string

const (
	EngineWhisper Engine = "whisper"
	EngineVosk    Engine = "vosk"
)

// ModelInfo информация о модели.
type ModelInfo struct {
	ID       string // Уникальный идентификатор: "whisper-tiny-q5"
	Engine   Engine // Движок: whisper или vosk
	Name     string // Отображаемое имя: "Tiny Q5 (32MB)"
	Filename string // Имя файла/директории: "ggml-tiny-q5_1.bin"
	URL      string // URL для скачивания
	Size     int64  // Размер в байтах (для прогресса)
	IsZip    bool   // Нужно ли распаковывать
}

// Registry все доступные модели.
var Registry = []ModelInfo{
	// Whisper - квантизированные модели (рекомендуется для CPU)
	{
		ID:       "whisper-tiny-q5",
		Engine:   EngineWhisper,
		Name:     "Tiny Q5",
		Filename: "ggml-tiny-q5_1.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny-q5_1.bin",
		Size:     32 * 1024 * 1024,
		IsZip:    false,
	},
	{
		ID:       "whisper-base-q5",
		Engine:   EngineWhisper,
		Name:     "Base Q5",
		Filename: "ggml-base-q5_1.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base-q5_1.bin",
		Size:     60 * 1024 * 1024,
		IsZip:    false,
	},
	{
		ID:       "whisper-small-q5",
		Engine:   EngineWhisper,
		Name:     "Small Q5",
		Filename: "ggml-small-q5_1.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small-q5_1.bin",
		Size:     190 * 1024 * 1024,
		IsZip:    false,
	},
	// Vosk - модели для распознавания без GPU
	{
		ID:       "vosk-small-ru",
		Engine:   EngineVosk,
		Name:     "Vosk Small RU",
		Filename: "vosk-model-small-ru-0.22",
		URL:      "https://alphacephei.com/vosk/models/vosk-model-small-ru-0.22.zip",
		Size:     45 * 1024 * 1024,
		IsZip:    true,
	},
	{
		ID:       "vosk-small-en",
		Engine:   EngineVosk,
		Name:     "Vosk Small EN",
		Filename: "vosk-model-small-en-us-0.15",
		URL:      "https://alphacephei.com/vosk/models/vosk-model-small-en-us-0.15.zip",
		Size:     40 * 1024 * 1024,
		IsZip:    true,
	},
}

// GetModel возвращает модель по ID.
func GetModel(id string) (ModelInfo, bool) {
	for _, m := range Registry {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// DefaultModelID возвращает ID модели по умолчанию.
func DefaultModelID() string {
	return "whisper-base-q5"
}
