package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if cfg.MaxSpeechSeconds != 20.0 {
		t.Errorf("maxSpeechSeconds = %v, want 20", cfg.MaxSpeechSeconds)
	}
	if cfg.ChunkMS != 32 {
		t.Errorf("chunkMS = %v, want 32", cfg.ChunkMS)
	}
	if cfg.MinRMS != 0.006 {
		t.Errorf("minRMS = %v, want 0.006", cfg.MinRMS)
	}
	if cfg.MinRatio != 1.8 {
		t.Errorf("minRatio = %v, want 1.8", cfg.MinRatio)
	}
	if cfg.Confirmations != 2 {
		t.Errorf("confirmations = %v, want 2", cfg.Confirmations)
	}
	if len(cfg.ExcludedInputKeywords) == 0 {
		t.Error("excludedInputKeywords is empty")
	}
}

func TestDurationConverters(t *testing.T) {
	cfg := Default()

	if got := cfg.TotalDuration(); got != 24*time.Hour {
		t.Errorf("totalDuration = %v, want 24h", got)
	}
	if got := cfg.SegmentDuration(); got != time.Hour {
		t.Errorf("segmentDuration = %v, want 1h", got)
	}
	if got := cfg.MaxSpeechDuration(); got != 20*time.Second {
		t.Errorf("maxSpeechDuration = %v, want 20s", got)
	}
	if got := cfg.MinSilence(); got != 1200*time.Millisecond {
		t.Errorf("minSilence = %v, want 1.2s", got)
	}
	if got := cfg.ChunkDuration(); got != 32*time.Millisecond {
		t.Errorf("chunkDuration = %v, want 32ms", got)
	}
	if got := cfg.Cooldown(); got != 8*time.Second {
		t.Errorf("cooldown = %v, want 8s", got)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Device != "default" {
		t.Errorf("device = %q, want default", cfg.Device)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Device = "usb mic"
	cfg.TotalHours = 8.5
	cfg.ASREnabled = false
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Device != "usb mic" {
		t.Errorf("device = %q, want %q", got.Device, "usb mic")
	}
	if got.TotalHours != 8.5 {
		t.Errorf("totalHours = %v, want 8.5", got.TotalHours)
	}
	if got.ASREnabled {
		t.Error("asrEnabled = true, want false")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Prefix = "night"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Незатронутые поля сохраняют значения по умолчанию.
	if got.SegmentMinutes != 60.0 {
		t.Errorf("segmentMinutes = %v, want 60", got.SegmentMinutes)
	}
	if got.Prefix != "night" {
		t.Errorf("prefix = %q, want night", got.Prefix)
	}
}
