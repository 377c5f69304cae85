// Package chatbox relays text to a VRChat-style chatbox over OSC as a
// rate-paced sequence of bounded chunks, plus a typing indicator.
package chatbox

import (
	"context"
	"fmt"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

const (
	inputAddr  = "/chatbox/input"
	typingAddr = "/chatbox/typing"
)

// Sender is the outbound OSC transport. *osc.Client satisfies it;
// delivery is fire-and-forget.
type Sender interface {
	Send(packet osc.Packet) error
}

type Logger interface {
	Debug(interface{}, ...interface{})
	Info(interface{}, ...interface{})
	Warn(interface{}, ...interface{})
	Error(interface{}, ...interface{})
}

// SleepFunc suspends between chunk sends, honoring ctx cancellation.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SplitChunks splits text into substrings of at most budget characters
// each, on rune boundaries so multi-byte text is never corrupted. A
// non-positive budget yields no chunks.
func SplitChunks(text string, budget int) []string {
	if budget <= 0 {
		return nil
	}
	runes := []rune(text)
	var chunks []string
	for len(runes) > 0 {
		n := budget
		if n > len(runes) {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}

// Client sends chatbox messages and typing signals.
type Client struct {
	sender    Sender
	budget    int
	maxChunks int
	delay     time.Duration
	sleep     SleepFunc
	logger    Logger
}

func New(sender Sender, budget, maxChunks int, delay time.Duration, logger Logger) *Client {
	return &Client{
		sender:    sender,
		budget:    budget,
		maxChunks: maxChunks,
		delay:     delay,
		sleep:     sleep,
		logger:    logger,
	}
}

// Say splits text into ordered chunks and sends them with the
// inter-chunk delay so the receiver displays them in order. Only the
// first chunk carries the notify flag. Chunks beyond the configured
// maximum are dropped; a transport failure aborts the remainder.
func (c *Client) Say(ctx context.Context, text string) error {
	chunks := SplitChunks(text, c.budget)
	if len(chunks) > c.maxChunks {
		c.logger.Warn("message truncated",
			"chunks", len(chunks),
			"max", c.maxChunks,
		)
		chunks = chunks[:c.maxChunks]
	}

	for i, chunk := range chunks {
		msg := osc.NewMessage(inputAddr)
		msg.Append(chunk)
		msg.Append(true)   // send immediately
		msg.Append(i == 0) // notify only once per message
		if err := c.sender.Send(msg); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
		c.logger.Debug("sent chunk", "index", i, "chars", len([]rune(chunk)))

		if i < len(chunks)-1 {
			if err := c.sleep(ctx, c.delay); err != nil {
				return err
			}
		}
	}

	return nil
}

// SetTyping flips the chatbox typing indicator.
func (c *Client) SetTyping(typing bool) error {
	msg := osc.NewMessage(typingAddr)
	msg.Append(typing)
	if err := c.sender.Send(msg); err != nil {
		return fmt.Errorf("send typing indicator: %w", err)
	}
	return nil
}
