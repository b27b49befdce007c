package transcribe

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	openai "github.com/sashabaranov/go-openai"
)

// MaxUploadBytes is the OpenAI audio upload limit.
const MaxUploadBytes = 25 << 20

// OpenAI transcribes through the OpenAI audio API.
type OpenAI struct {
	client *openai.Client
	Model  string
}

// NewOpenAI creates a client. An empty baseURL uses api.openai.com.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), Model: openai.Whisper1}
}

// Transcribe uploads path and returns the transcript.
func (o *OpenAI) Transcribe(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat audio: %w", err)
	}
	if info.Size() > MaxUploadBytes {
		return "", fmt.Errorf("%w: %s is %s", ErrFileTooLarge, path, humanize.IBytes(uint64(info.Size())))
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.Model,
		FilePath: path,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return resp.Text, nil
}
