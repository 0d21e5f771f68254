package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const openAITranscriptionsURL = "https://api.openai.com/v1/audio/transcriptions"

// OpenAIRecognizer реализует Recognizer через OpenAI audio/transcriptions.
type OpenAIRecognizer struct {
	apiKey string
	model  string
	client *http.Client
}

type openAIResp struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// NewOpenAI создаёт облачный распознаватель.
func NewOpenAI(apiKey, model string) (*OpenAIRecognizer, error) {
	if apiKey == "" {
		return nil, Permanent(fmt.Errorf("не задан OPENAI_API_KEY"))
	}
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAIRecognizer{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// Name возвращает название движка.
func (o *OpenAIRecognizer) Name() string {
	return "openai"
}

// Transcribe отправляет сэмплы как WAV файл в API.
// Сетевые ошибки и 5xx/429 считаются временными, остальные HTTP ошибки -
// неустранимыми.
func (o *OpenAIRecognizer) Transcribe(ctx context.Context, samples []float32, lang string) (Result, error) {
	wavPath, err := encodeTempWAV(samples)
	if err != nil {
		return Result{}, Permanent(err)
	}
	defer os.Remove(wavPath)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", o.model); err != nil {
		return Result{}, Permanent(err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return Result{}, Permanent(err)
	}
	if lang != "" && lang != "auto" {
		if err := mw.WriteField("language", lang); err != nil {
			return Result{}, Permanent(err)
		}
	}

	f, err := os.Open(wavPath)
	if err != nil {
		return Result{}, Permanent(err)
	}
	fw, err := mw.CreateFormFile("file", "segment.wav")
	if err != nil {
		f.Close()
		return Result{}, Permanent(err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		f.Close()
		return Result{}, err
	}
	f.Close()
	if err := mw.Close(); err != nil {
		return Result{}, Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAITranscriptionsURL, &body)
	if err != nil {
		return Result{}, Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		httpErr := fmt.Errorf("openai http %d: %s", resp.StatusCode, string(b))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return Result{}, httpErr
		}
		return Result{}, Permanent(httpErr)
	}

	var or openAIResp
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return Result{}, err
	}
	return Result{Text: or.Text, Language: or.Language}, nil
}

// Close освобождает ресурсы (для HTTP движка ничего не требуется).
func (o *OpenAIRecognizer) Close() {}

// encodeTempWAV пишет сэмплы во временный PCM16 WAV файл.
func encodeTempWAV(samples []float32) (string, error) {
	f, err := os.CreateTemp("", "everec-asr-*.wav")
	if err != nil {
		return "", err
	}

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		data[i] = int(s * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
