// Package config предоставляет конфигурацию рекордера с сохранением в файл.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config хранит настройки непрерывной записи.
//
// Длительности заданы в "человеческих" единицах (часы/минуты/секунды/мс),
// как их вводит пользователь; для кода есть методы-конвертеры ниже.
type Config struct {
	// Устройство ввода: "default", индекс ("1" или ":1") или подстрока имени.
	Device string `json:"device"`
	// Директория для аудио сегментов и sidecar-документов.
	OutputDir string `json:"output_dir"`
	// Префикс имён файлов.
	Prefix string `json:"prefix"`

	// Общая длительность записи в часах.
	TotalHours float64 `json:"total_hours"`
	// Длина архивного сегмента в минутах.
	SegmentMinutes float64 `json:"segment_minutes"`

	// Размер кадра захвата в миллисекундах.
	ChunkMS int `json:"chunk_ms"`
	// Порог RMS для классификации кадра как речь.
	VADThreshold float64 `json:"vad_threshold"`
	// Максимальная длительность речевого сегмента в секундах (принудительный разрез).
	MaxSpeechSeconds float64 `json:"max_speech_seconds"`
	// Сколько миллисекунд тишины закрывают речевой сегмент.
	MinSilenceMS int `json:"min_silence_ms"`

	// Интервал переоткрытия устройства после ошибки, в секундах.
	DeviceRetrySeconds float64 `json:"device_retry_seconds"`

	// Автопереключение на более громкий микрофон.
	AutoSwitch            bool     `json:"auto_switch"`
	ScanSeconds           float64  `json:"auto_switch_scan_seconds"`
	ProbeSeconds          float64  `json:"auto_switch_probe_seconds"`
	MaxCandidatesPerScan  int      `json:"auto_switch_max_candidates_per_scan"`
	MinRMS                float64  `json:"auto_switch_min_rms"`
	MinRatio              float64  `json:"auto_switch_min_ratio"`
	CooldownSeconds       float64  `json:"auto_switch_cooldown_seconds"`
	Confirmations         int      `json:"auto_switch_confirmations"`
	ExcludedInputKeywords []string `json:"excluded_input_keywords"`

	// Распознавание речи.
	ASREnabled     bool   `json:"asr_enabled"`
	ASREngine      string `json:"asr_engine"` // whisper, vosk, openai
	ASRModel       string `json:"asr_model"`  // ID модели из реестра или имя модели API
	ASRLanguage    string `json:"asr_language"`
	ASRConcurrency int    `json:"asr_concurrency"`
	ASRRetries     int    `json:"asr_retries"`
	// Максимальное ожидание дообработки очереди ASR при завершении, в секундах.
	DrainSeconds float64 `json:"drain_seconds"`

	// Системные уведомления о переключении/потере микрофона.
	Notifications bool `json:"notifications"`

	// Ёмкость кольцевого буфера кадров (фан-аут на архиватор и сегментатор).
	RingFrames int `json:"ring_frames"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Device:                "default",
		OutputDir:             "recordings",
		Prefix:                "eve",
		TotalHours:            24.0,
		SegmentMinutes:        60.0,
		ChunkMS:               32,
		VADThreshold:          0.01,
		MaxSpeechSeconds:      20.0,
		MinSilenceMS:          1200,
		DeviceRetrySeconds:    2.0,
		AutoSwitch:            true,
		ScanSeconds:           3.0,
		ProbeSeconds:          0.25,
		MaxCandidatesPerScan:  2,
		MinRMS:                0.006,
		MinRatio:              1.8,
		CooldownSeconds:       8.0,
		Confirmations:         2,
		ExcludedInputKeywords: []string{"iphone", "continuity"},
		ASREnabled:            true,
		ASREngine:             "whisper",
		ASRModel:              "whisper-base-q5",
		ASRLanguage:           "auto",
		ASRConcurrency:        1,
		ASRRetries:            2,
		DrainSeconds:          30.0,
		Notifications:         true,
		RingFrames:            256,
	}
}

// Load загружает конфигурацию из файла поверх значений по умолчанию.
// Отсутствующий файл не является ошибкой.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save сохраняет конфигурацию в файл.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultPath возвращает путь к config.json рядом с бинарником.
func DefaultPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return "config.json"
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	return filepath.Join(filepath.Dir(execPath), "config.json")
}

// TotalDuration возвращает общую длительность записи.
func (c *Config) TotalDuration() time.Duration {
	return time.Duration(c.TotalHours * float64(time.Hour))
}

// SegmentDuration возвращает длину архивного сегмента.
func (c *Config) SegmentDuration() time.Duration {
	return time.Duration(c.SegmentMinutes * float64(time.Minute))
}

// ChunkDuration возвращает длительность одного кадра захвата.
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.ChunkMS) * time.Millisecond
}

// MaxSpeechDuration возвращает потолок длительности речевого сегмента.
func (c *Config) MaxSpeechDuration() time.Duration {
	return time.Duration(c.MaxSpeechSeconds * float64(time.Second))
}

// MinSilence возвращает окно тишины, закрывающее речевой сегмент.
func (c *Config) MinSilence() time.Duration {
	return time.Duration(c.MinSilenceMS) * time.Millisecond
}

// DeviceRetry возвращает интервал переоткрытия устройства.
func (c *Config) DeviceRetry() time.Duration {
	return time.Duration(c.DeviceRetrySeconds * float64(time.Second))
}

// ScanInterval возвращает период сканирования кандидатов.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanSeconds * float64(time.Second))
}

// ProbeDuration возвращает длительность пробного прослушивания кандидата.
func (c *Config) ProbeDuration() time.Duration {
	return time.Duration(c.ProbeSeconds * float64(time.Second))
}

// Cooldown возвращает минимальную паузу между переключениями.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds * float64(time.Second))
}

// DrainTimeout возвращает лимит ожидания очереди ASR при завершении.
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainSeconds * float64(time.Second))
}
