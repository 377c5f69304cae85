// Package stt transcribes finalized audio segments with the OpenAI
// Whisper API.
package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrEmptyAudio is returned before any network call when the
	// payload has no bytes.
	ErrEmptyAudio = errors.New("audio payload is empty")

	// ErrEmptyTranscription is returned when the service responds with
	// no recognized text.
	ErrEmptyTranscription = errors.New("received empty transcription")
)

// Transcriber turns a self-contained WAV payload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

type WhisperClient struct {
	client *openai.Client
	logger *log.Logger
}

func NewWhisperClient(apiKey string, logger *log.Logger) *WhisperClient {
	return &WhisperClient{
		client: openai.NewClient(apiKey),
		logger: logger,
	}
}

func (c *WhisperClient) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", ErrEmptyAudio
	}

	c.logger.Debug("sending audio for transcription", "bytes", len(wav))

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wav),
	})
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}

	if resp.Text == "" {
		return "", ErrEmptyTranscription
	}

	return resp.Text, nil
}
