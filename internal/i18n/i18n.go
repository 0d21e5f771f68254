// Package i18n provides internationalization support.
package i18n

import "sync"

// Language represents a UI language.
type Language string

const (
	RU Language = "ru"
	EN Language = "en"
)

var (
	mu      sync.RWMutex
	current = RU // Default language
)

// Translations for all supported languages.
var translations = map[Language]map[string]string{
	RU: {
		// App
		"app_name": "Everec",

		// Notifications
		"notify_started":          "Запись начата",
		"notify_started_hint":     "Непрерывная запись с микрофона",
		"notify_switched":         "Микрофон переключён",
		"notify_device_lost":      "Микрофон недоступен",
		"notify_device_lost_hint": "Пытаюсь переподключиться...",
		"notify_restored":         "Микрофон восстановлен",
		"notify_finished":         "Запись завершена",
		"notify_error":            "Ошибка",
	},

	EN: {
		// App
		"app_name": "Everec",

		// Notifications
		"notify_started":          "Recording started",
		"notify_started_hint":     "Continuous microphone recording",
		"notify_switched":         "Microphone switched",
		"notify_device_lost":      "Microphone unavailable",
		"notify_device_lost_hint": "Trying to reconnect...",
		"notify_restored":         "Microphone restored",
		"notify_finished":         "Recording finished",
		"notify_error":            "Error",
	},
}

// T returns the translation for the given key.
func T(key string) string {
	mu.RLock()
	defer mu.RUnlock()

	if strings, ok := translations[current]; ok {
		if s, ok := strings[key]; ok {
			return s
		}
	}
	// Fallback to key itself
	return key
}

// SetLanguage sets the current UI language.
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()
	current = lang
}

// GetLanguage returns the current UI language.
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
