// Everec - непрерывная запись с микрофона с ротацией архивных файлов,
// автопереключением на более громкое устройство и фоновым распознаванием
// речевых сегментов.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"everec/internal/audio"
	"everec/internal/config"
	"everec/internal/logger"
	"everec/internal/models"
	"everec/internal/notify"
	"everec/internal/recorder"
	"everec/internal/speech"
)

// Version устанавливается при сборке через -ldflags.
var Version = "dev"

func main() {
	// .env рядом с рабочей директорией: OPENAI_API_KEY, LOG_LEVEL.
	_ = godotenv.Load()
	log := logger.New()

	configPath := flag.String("config", config.DefaultPath(), "путь к config.json")
	device := flag.String("device", "", "устройство ввода: default, индекс или подстрока имени")
	outputDir := flag.String("output-dir", "", "директория для записей")
	prefix := flag.String("prefix", "", "префикс имён файлов")
	totalHours := flag.Float64("total-hours", 0, "общая длительность записи в часах")
	segmentMinutes := flag.Float64("segment-minutes", 0, "длина архивного файла в минутах")
	noASR := flag.Bool("no-asr", false, "выключить распознавание речи")
	asrEngine := flag.String("asr-engine", "", "движок распознавания: whisper, vosk, openai")
	asrModel := flag.String("asr-model", "", "ID модели или имя модели API")
	asrLanguage := flag.String("asr-language", "", "язык распознавания (auto для автоопределения)")
	noAutoSwitch := flag.Bool("no-auto-switch", false, "выключить автопереключение микрофона")
	listDevices := flag.Bool("list-devices", false, "показать входные устройства и выйти")
	listModels := flag.Bool("list-models", false, "показать доступные модели и выйти")
	downloadModel := flag.String("download-model", "", "скачать модель по ID и выйти")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	applyFlags(cfg, *device, *outputDir, *prefix, *totalHours, *segmentMinutes,
		*noASR, *asrEngine, *asrModel, *asrLanguage, *noAutoSwitch)

	if *listModels {
		printModels()
		return
	}
	if *downloadModel != "" {
		if err := download(*downloadModel); err != nil {
			log.Fatalf("Ошибка скачивания модели: %v", err)
		}
		return
	}

	if err := audio.Initialize(); err != nil {
		log.Fatalf("Ошибка инициализации аудио: %v", err)
	}
	defer audio.Terminate()

	if *listDevices {
		if err := printDevices(cfg); err != nil {
			log.Fatalf("Ошибка перечисления устройств: %v", err)
		}
		return
	}

	var rec speech.Recognizer
	if cfg.ASREnabled {
		manager, err := models.NewManager()
		if err != nil {
			log.Fatalf("Ошибка инициализации менеджера моделей: %v", err)
		}
		rec, err = speech.NewRecognizer(speech.Options{
			Engine:   speech.Engine(cfg.ASREngine),
			ModelID:  cfg.ASRModel,
			APIKey:   os.Getenv("OPENAI_API_KEY"),
			APIModel: cfg.ASRModel,
		}, manager)
		if err != nil {
			log.Fatalf("Ошибка создания распознавателя: %v", err)
		}
		defer rec.Close()
		log.Infof("Движок распознавания: %s", rec.Name())
	} else {
		log.Info("Распознавание выключено, пишем только аудио")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("Everec %s: запись %.1f ч сегментами по %.0f мин в %s",
		Version, cfg.TotalHours, cfg.SegmentMinutes, cfg.OutputDir)

	r := recorder.New(cfg, rec, notify.New(cfg.Notifications), log)
	if err := r.Run(ctx); err != nil {
		log.Fatalf("Ошибка записи: %v", err)
	}
}

// applyFlags накладывает переданные флаги поверх конфигурации.
func applyFlags(cfg *config.Config, device, outputDir, prefix string,
	totalHours, segmentMinutes float64, noASR bool,
	asrEngine, asrModel, asrLanguage string, noAutoSwitch bool) {
	if device != "" {
		cfg.Device = device
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if prefix != "" {
		cfg.Prefix = prefix
	}
	if totalHours > 0 {
		cfg.TotalHours = totalHours
	}
	if segmentMinutes > 0 {
		cfg.SegmentMinutes = segmentMinutes
	}
	if noASR {
		cfg.ASREnabled = false
	}
	if asrEngine != "" {
		cfg.ASREngine = asrEngine
	}
	if asrModel != "" {
		cfg.ASRModel = asrModel
	}
	if asrLanguage != "" {
		cfg.ASRLanguage = asrLanguage
	}
	if noAutoSwitch {
		cfg.AutoSwitch = false
	}
}

func printDevices(cfg *config.Config) error {
	devices, err := audio.InputDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		mark := ""
		if audio.IsExcluded(d.Name, cfg.ExcludedInputKeywords) {
			mark = " (исключено)"
		}
		fmt.Printf("[%d] %s%s\n", d.Index, d.Name, mark)
	}
	return nil
}

func printModels() {
	manager, err := models.NewManager()
	for _, m := range models.Registry {
		mark := ""
		if err == nil && manager.IsDownloaded(m) {
			mark = " (скачана)"
		}
		fmt.Printf("%-18s %s [%s]%s\n", m.ID, m.Name, m.Engine, mark)
	}
}

func download(id string) error {
	info, ok := models.GetModel(id)
	if !ok {
		return fmt.Errorf("модель не найдена: %s", id)
	}
	manager, err := models.NewManager()
	if err != nil {
		return err
	}
	if manager.IsDownloaded(info) {
		fmt.Printf("Модель %s уже скачана\n", info.ID)
		return nil
	}

	progress := make(chan models.Progress, 16)
	go func() {
		for p := range progress {
			if p.Total > 0 {
				fmt.Printf("\r%s: %d%%", p.ModelID, p.Downloaded*100/p.Total)
			}
		}
	}()

	err = manager.Download(context.Background(), info, progress)
	close(progress)
	fmt.Println()
	if err != nil {
		return err
	}
	fmt.Printf("Модель %s скачана в %s\n", info.ID, manager.GetModelPath(info))
	return nil
}
