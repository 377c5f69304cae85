// Package bot runs the consumer side of the pipeline: it drains
// segment events in order and drives transcription, translation, cost
// accounting, and chatbox dispatch one segment at a time.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"vrcbabel/llm"
	"vrcbabel/seg"
	"vrcbabel/snd"
	"vrcbabel/stt"
)

type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

type Translator interface {
	Translate(ctx context.Context, text string) (llm.Translation, error)
}

// Chatbox is the outbound side: paced chunked dispatch plus the typing
// signal.
type Chatbox interface {
	Say(ctx context.Context, text string) error
	SetTyping(typing bool) error
}

type Limiter interface {
	Acquire(ctx context.Context) error
}

// Accountant receives cost deltas for completed segments.
type Accountant interface {
	TranscriptionCost(d time.Duration) float64
	TranslationCost(inputTokens, outputTokens int) float64
	Add(delta float64)
	Total() float64
}

type Config struct {
	// MinDuration is the shortest segment worth transcribing; shorter
	// segments are skipped as benign noise.
	MinDuration time.Duration

	// IncludeOriginal appends the raw transcript below the translation.
	IncludeOriginal bool
}

type Bot struct {
	cfg         Config
	limiter     Limiter
	transcriber Transcriber
	translator  Translator
	chatbox     Chatbox
	accountant  Accountant
	logger      *log.Logger
}

func New(
	cfg Config,
	limiter Limiter,
	transcriber Transcriber,
	translator Translator,
	chatbox Chatbox,
	accountant Accountant,
	logger *log.Logger,
) *Bot {
	return &Bot{
		cfg:         cfg,
		limiter:     limiter,
		transcriber: transcriber,
		translator:  translator,
		chatbox:     chatbox,
		accountant:  accountant,
		logger:      logger,
	}
}

// Run processes events strictly in arrival order until ctx is canceled
// or the channel closes. A segment's full pipeline completes before
// the next event is handled; failures abandon that segment and the
// loop continues.
func (b *Bot) Run(ctx context.Context, events <-chan seg.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.handle(ctx, ev)
		}
	}
}

func (b *Bot) handle(ctx context.Context, ev seg.Event) {
	switch ev.Kind {
	case seg.SegmentStarted:
		b.logger.Info("sound detected, segment open", "segment", ev.SegmentID)
		b.setTyping(true)
	case seg.RecordingStopped:
		b.setTyping(false)
	case seg.SegmentEnded:
		if err := b.process(ctx, ev); err != nil {
			b.logger.Error("abandoning segment",
				"segment", ev.SegmentID,
				"error", err,
			)
		}
	}
}

func (b *Bot) process(ctx context.Context, ev seg.Event) error {
	b.logger.Info("silence detected, segment closed",
		"segment", ev.SegmentID,
		"bytes", len(ev.WAV),
	)

	duration, err := snd.Duration(ev.WAV)
	if err != nil {
		return fmt.Errorf("decode segment duration: %w", err)
	}

	if duration < b.cfg.MinDuration {
		b.logger.Info("segment too short, skipping transcription",
			"segment", ev.SegmentID,
			"duration", duration,
			"min", b.cfg.MinDuration,
		)
		b.setTyping(false)
		return nil
	}

	if err := b.limiter.Acquire(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	transcript, err := b.transcriber.Transcribe(ctx, ev.WAV)
	if errors.Is(err, stt.ErrEmptyTranscription) {
		// No recognized speech is benign, not a pipeline failure.
		b.logger.Info("no speech recognized, skipping segment", "segment", ev.SegmentID)
		b.setTyping(false)
		return nil
	}
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	b.logger.Info("transcription", "segment", ev.SegmentID, "text", transcript)

	translation, err := b.translator.Translate(ctx, transcript)
	if err != nil {
		return fmt.Errorf("translate: %w", err)
	}
	b.logger.Info("translation", "segment", ev.SegmentID, "text", translation.Text)

	cost := b.accountant.TranscriptionCost(duration) +
		b.accountant.TranslationCost(translation.PromptTokens, translation.CompletionTokens)
	b.accountant.Add(cost)
	b.logger.Info("estimated cost",
		"segment", ev.SegmentID,
		"cost", fmt.Sprintf("$%.4f", cost),
		"total", fmt.Sprintf("$%.4f", b.accountant.Total()),
	)

	text := translation.Text
	if b.cfg.IncludeOriginal {
		text = text + "\n" + transcript
	}
	if err := b.chatbox.Say(ctx, text); err != nil {
		return fmt.Errorf("dispatch to chatbox: %w", err)
	}

	b.setTyping(false)
	return nil
}

// setTyping flips the indicator; transport errors here are logged and
// otherwise ignored, the signal is cosmetic.
func (b *Bot) setTyping(typing bool) {
	if err := b.chatbox.SetTyping(typing); err != nil {
		b.logger.Error("failed to send typing indicator", "error", err)
	}
}
