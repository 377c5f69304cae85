// Package cost tracks estimated spend on the transcription and
// translation services.
package cost

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// WhisperPerMinute is the transcription price in dollars per audio
// minute.
const WhisperPerMinute = 0.006

// ModelPrices holds a chat model's prices in dollars per million
// tokens.
type ModelPrices struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var priceTable = map[string]ModelPrices{
	"gpt-4o":                 {5.00, 15.00},
	"gpt-4o-2024-08-06":      {2.50, 10.00},
	"gpt-4o-2024-05-13":      {5.00, 15.00},
	"gpt-4o-mini":            {0.150, 0.600},
	"gpt-4o-mini-2024-07-18": {0.150, 0.600},
}

// Lookup returns the price entry for a model id, or zero prices for an
// unknown model.
func Lookup(model string) ModelPrices {
	return priceTable[model]
}

// Models lists the known model ids in the price table.
func Models() []string {
	models := make([]string, 0, len(priceTable))
	for model := range priceTable {
		models = append(models, model)
	}
	return models
}

type Logger interface {
	Debug(interface{}, ...interface{})
	Info(interface{}, ...interface{})
	Warn(interface{}, ...interface{})
	Error(interface{}, ...interface{})
}

// Ledger accumulates a running total across process runs, persisted to
// a flat file. It is owned by the consumer loop and receives cost
// deltas as plain values.
type Ledger struct {
	prices ModelPrices
	path   string
	total  float64
	logger Logger
}

// OpenLedger loads the persisted total for path; a missing or
// unreadable file starts the total at zero.
func OpenLedger(path, model string, logger Logger) *Ledger {
	total, err := LoadTotal(path)
	if err != nil {
		logger.Debug("no persisted total, starting at zero", "path", path, "error", err)
		total = 0
	}
	return &Ledger{
		prices: Lookup(model),
		path:   path,
		total:  total,
		logger: logger,
	}
}

// LoadTotal reads a persisted running total from a flat file.
func LoadTotal(path string) (float64, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(string(content)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse persisted total: %w", err)
	}
	return total, nil
}

// TranscriptionCost estimates the Whisper charge for an audio duration.
func (l *Ledger) TranscriptionCost(d time.Duration) float64 {
	return d.Minutes() * WhisperPerMinute
}

// TranslationCost estimates the chat completion charge from token
// counts.
func (l *Ledger) TranslationCost(inputTokens, outputTokens int) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * l.prices.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000 * l.prices.OutputPerMillion
	return inputCost + outputCost
}

// Add folds a cost delta into the running total and persists it. A
// write failure loses the persistence, not the in-memory total.
func (l *Ledger) Add(delta float64) {
	l.total += delta
	if err := os.WriteFile(l.path, []byte(strconv.FormatFloat(l.total, 'f', -1, 64)), 0644); err != nil {
		l.logger.Error("failed to save running total", "path", l.path, "error", err)
	}
}

// Total returns the running total including all persisted history.
func (l *Ledger) Total() float64 { return l.total }
