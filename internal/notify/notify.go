// Package notify предоставляет системные уведомления.
package notify

import (
	"github.com/gen2brain/beeep"

	"everec/internal/i18n"
)

const appName = "Everec"

// Notifier отправляет системные уведомления.
type Notifier struct {
	enabled bool
}

// New создаёт новый Notifier.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled}
}

// SetEnabled включает/выключает уведомления.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled = enabled
}

// Started показывает уведомление о начале записи.
func (n *Notifier) Started(device string) {
	n.notify(i18n.T("notify_started"), device)
}

// DeviceSwitched показывает уведомление о переключении микрофона.
func (n *Notifier) DeviceSwitched(from, to string) {
	n.notify(i18n.T("notify_switched"), from+" → "+to)
}

// DeviceLost показывает уведомление о потере микрофона.
func (n *Notifier) DeviceLost(device string) {
	n.notify(i18n.T("notify_device_lost"), device+". "+i18n.T("notify_device_lost_hint"))
}

// DeviceRestored показывает уведомление о восстановлении микрофона.
func (n *Notifier) DeviceRestored(device string) {
	n.notify(i18n.T("notify_restored"), device)
}

// Finished показывает уведомление о завершении записи.
func (n *Notifier) Finished() {
	n.notify(i18n.T("notify_finished"), "")
}

// Error показывает уведомление об ошибке.
func (n *Notifier) Error(msg string) {
	if len(msg) > 100 {
		msg = msg[:100] + "..."
	}
	n.notify(i18n.T("notify_error"), msg)
}

func (n *Notifier) notify(title, message string) {
	if !n.enabled {
		return
	}
	// Игнорируем ошибки уведомлений - они не критичны
	if title != "" {
		_ = beeep.Notify(appName+": "+title, message, "")
	} else {
		_ = beeep.Notify(appName, message, "")
	}
}
