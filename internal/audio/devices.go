package audio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// preferredTokens - подстроки имён встроенных микрофонов, предпочитаемых
// при выборе устройства по умолчанию.
var preferredTokens = []string{"macbook", "built-in", "internal"}

// IsExcluded проверяет попадание имени устройства в список исключений.
// Исключённые устройства (например, микрофоны transient-компаньонов)
// никогда не выбираются и не пробуются.
func IsExcluded(name string, keywords []string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return false
	}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// InputDevices возвращает все устройства с хотя бы одним входным каналом.
func InputDevices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("перечисление устройств: %w", err)
	}
	var devices []Device
	for i, info := range infos {
		if info == nil || info.MaxInputChannels < Channels {
			continue
		}
		devices = append(devices, Device{Index: i, Name: info.Name, info: info})
	}
	return devices, nil
}

// EligibleInputs возвращает входные устройства без исключённых по ключевым словам.
func EligibleInputs(excluded []string) ([]Device, error) {
	devices, err := InputDevices()
	if err != nil {
		return nil, err
	}
	eligible := devices[:0]
	for _, d := range devices {
		if !IsExcluded(d.Name, excluded) {
			eligible = append(eligible, d)
		}
	}
	return eligible, nil
}

// DefaultInput выбирает устройство по умолчанию. Системный default
// используется если он не исключён; иначе предпочитается встроенный микрофон,
// затем первое подходящее устройство.
func DefaultInput(excluded []string) (Device, error) {
	if info, err := portaudio.DefaultInputDevice(); err == nil && info != nil &&
		info.MaxInputChannels >= Channels && !IsExcluded(info.Name, excluded) {
		if d, err := findByName(info.Name); err == nil {
			return d, nil
		}
	}

	eligible, err := EligibleInputs(excluded)
	if err != nil {
		return Device{}, err
	}
	if len(eligible) == 0 {
		return Device{}, ErrDeviceNotFound
	}
	for _, d := range eligible {
		name := strings.ToLower(d.Name)
		for _, token := range preferredTokens {
			if strings.Contains(name, token) {
				return d, nil
			}
		}
	}
	return eligible[0], nil
}

// Resolve находит устройство по селектору: "default"/"auto"/"" - устройство
// по умолчанию, число или ":число" - индекс, иначе подстрока имени.
func Resolve(selector string, excluded []string) (Device, error) {
	selector = strings.TrimSpace(selector)
	switch selector {
	case "", "default", "auto":
		return DefaultInput(excluded)
	}

	numeric := strings.TrimPrefix(selector, ":")
	if idx, err := strconv.Atoi(numeric); err == nil {
		return findByIndex(idx)
	}

	devices, err := InputDevices()
	if err != nil {
		return Device{}, err
	}
	want := strings.ToLower(selector)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), want) {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, selector)
}

func findByIndex(idx int) (Device, error) {
	devices, err := InputDevices()
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if d.Index == idx {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: индекс %d", ErrDeviceNotFound, idx)
}

func findByName(name string) (Device, error) {
	devices, err := InputDevices()
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}
