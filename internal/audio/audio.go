// Package audio предоставляет захват аудио с микрофона: перечисление
// устройств, сессию непрерывного захвата и пробное прослушивание кандидатов.
package audio

import (
	"errors"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	// SampleRate - частота дискретизации (требование Whisper).
	SampleRate = 16000
	// Channels - количество каналов (mono).
	Channels = 1
)

var (
	// ErrDeviceNotFound - устройство не найдено при перечислении.
	ErrDeviceNotFound = errors.New("устройство ввода не найдено")
	// ErrDeviceUnavailable - устройство недоступно (отключено, занято, сбой потока).
	ErrDeviceUnavailable = errors.New("устройство ввода недоступно")
	// ErrPermissionDenied - нет прав доступа к устройству.
	ErrPermissionDenied = errors.New("нет доступа к устройству ввода")
)

// Device - идентичность устройства ввода: стабильный индекс и имя.
type Device struct {
	Index int
	Name  string

	info *portaudio.DeviceInfo
}

// Frame - кадр аудио фиксированного размера с монотонной меткой времени
// и устройством-источником.
type Frame struct {
	Samples []float32
	Time    time.Time
	Device  Device
}

// End возвращает момент окончания кадра.
func (f Frame) End() time.Time {
	return f.Time.Add(f.Duration())
}

// Duration возвращает длительность кадра.
func (f Frame) Duration() time.Duration {
	return time.Duration(len(f.Samples)) * time.Second / SampleRate
}

// Initialize инициализирует аудио подсистему. Вызывается один раз при старте.
func Initialize() error {
	return portaudio.Initialize()
}

// Terminate освобождает аудио подсистему.
func Terminate() {
	portaudio.Terminate()
}

// RMS возвращает среднеквадратичную громкость сэмплов.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
