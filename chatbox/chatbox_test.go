package chatbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

type mockSender struct {
	messages []*osc.Message
	failAt   int // fail the nth Send (1-based), 0 = never
}

func (m *mockSender) Send(packet osc.Packet) error {
	msg, ok := packet.(*osc.Message)
	if !ok {
		return errors.New("unexpected packet type")
	}
	m.messages = append(m.messages, msg)
	if m.failAt > 0 && len(m.messages) == m.failAt {
		return errors.New("transport down")
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(interface{}, ...interface{}) {}
func (nopLogger) Info(interface{}, ...interface{})  {}
func (nopLogger) Warn(interface{}, ...interface{})  {}
func (nopLogger) Error(interface{}, ...interface{}) {}

func newTestClient(sender Sender, budget, maxChunks int) (*Client, *int) {
	c := New(sender, budget, maxChunks, 50*time.Millisecond, nopLogger{})
	sleeps := 0
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}
	return c, &sleeps
}

func TestSplitChunksCounts(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		budget int
		want   int
	}{
		{"empty", "", 144, 0},
		{"under budget", "hello", 144, 1},
		{"exact budget", strings.Repeat("a", 144), 144, 1},
		{"one over", strings.Repeat("a", 145), 144, 2},
		{"several", strings.Repeat("a", 433), 144, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitChunks(tc.text, tc.budget)
			if len(got) != tc.want {
				t.Errorf("expected %d chunks, got %d", tc.want, len(got))
			}
		})
	}
}

func TestSplitChunksNonPositiveBudget(t *testing.T) {
	for _, budget := range []int{0, -1} {
		done := make(chan []string, 1)
		go func() {
			done <- SplitChunks("hello", budget)
		}()
		select {
		case chunks := <-done:
			if chunks != nil {
				t.Errorf("budget %d: expected no chunks, got %v", budget, chunks)
			}
		case <-time.After(time.Second):
			t.Fatalf("budget %d: SplitChunks did not return", budget)
		}
	}
}

func TestSayWithNonPositiveBudgetSendsNothing(t *testing.T) {
	sender := &mockSender{}
	c, _ := newTestClient(sender, 0, 3)

	if err := c.Say(context.Background(), "hello"); err != nil {
		t.Fatalf("Say failed: %v", err)
	}
	if len(sender.messages) != 0 {
		t.Errorf("expected no sends with a zero budget, got %d", len(sender.messages))
	}
}

func TestSplitChunksLossless(t *testing.T) {
	text := strings.Repeat("abcdefg ", 60)
	chunks := SplitChunks(text, 144)
	if strings.Join(chunks, "") != text {
		t.Error("concatenated chunks must reproduce the input")
	}
	for i, chunk := range chunks {
		if n := len([]rune(chunk)); n > 144 {
			t.Errorf("chunk %d has %d chars, budget is 144", i, n)
		}
	}
}

func TestSplitChunksNeverSplitsMultibyte(t *testing.T) {
	text := strings.Repeat("あいうえお", 40) // 200 characters, 3 bytes each
	chunks := SplitChunks(text, 144)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !strings.HasPrefix(chunk, "あ") {
			t.Errorf("chunk %d starts mid-character: %q", i, chunk[:3])
		}
		if len([]rune(chunk)) > 144 {
			t.Errorf("chunk %d exceeds the character budget", i)
		}
	}
	if strings.Join(chunks, "") != text {
		t.Error("multibyte text must survive splitting intact")
	}
}

func TestSayOrderAndFirstFlag(t *testing.T) {
	sender := &mockSender{}
	c, sleeps := newTestClient(sender, 5, 10)

	if err := c.Say(context.Background(), "aaaaabbbbbccccc"); err != nil {
		t.Fatalf("Say failed: %v", err)
	}
	if len(sender.messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sender.messages))
	}

	var rebuilt strings.Builder
	for i, msg := range sender.messages {
		if msg.Address != "/chatbox/input" {
			t.Errorf("message %d: wrong address %s", i, msg.Address)
		}
		text, ok := msg.Arguments[0].(string)
		if !ok {
			t.Fatalf("message %d: first argument is not a string", i)
		}
		rebuilt.WriteString(text)
		if immediate := msg.Arguments[1].(bool); !immediate {
			t.Errorf("message %d: send-immediately flag must be set", i)
		}
		if notify := msg.Arguments[2].(bool); notify != (i == 0) {
			t.Errorf("message %d: notify flag should be %v", i, i == 0)
		}
	}
	if rebuilt.String() != "aaaaabbbbbccccc" {
		t.Errorf("chunks arrived out of order: %q", rebuilt.String())
	}
	if *sleeps != 2 {
		t.Errorf("expected a delay between each pair of chunks, got %d sleeps", *sleeps)
	}
}

func TestSayDropsExcessChunks(t *testing.T) {
	sender := &mockSender{}
	c, _ := newTestClient(sender, 2, 3)

	if err := c.Say(context.Background(), "aabbccddee"); err != nil {
		t.Fatalf("Say failed: %v", err)
	}
	if len(sender.messages) != 3 {
		t.Errorf("expected excess chunks to be dropped, got %d messages", len(sender.messages))
	}
	var rebuilt strings.Builder
	for _, msg := range sender.messages {
		rebuilt.WriteString(msg.Arguments[0].(string))
	}
	if rebuilt.String() != "aabbcc" {
		t.Errorf("retained chunks must be a prefix of the input, got %q", rebuilt.String())
	}
}

func TestSayAbortsOnTransportFailure(t *testing.T) {
	sender := &mockSender{failAt: 2}
	c, _ := newTestClient(sender, 2, 10)

	err := c.Say(context.Background(), "aabbcc")
	if err == nil {
		t.Fatal("expected an error from the failing transport")
	}
	if len(sender.messages) != 2 {
		t.Errorf("remaining chunks must be aborted after a failure, got %d sends", len(sender.messages))
	}
}

func TestSetTyping(t *testing.T) {
	sender := &mockSender{}
	c, _ := newTestClient(sender, 144, 4)

	if err := c.SetTyping(true); err != nil {
		t.Fatalf("SetTyping failed: %v", err)
	}
	if err := c.SetTyping(false); err != nil {
		t.Fatalf("SetTyping failed: %v", err)
	}

	if len(sender.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sender.messages))
	}
	for i, want := range []bool{true, false} {
		msg := sender.messages[i]
		if msg.Address != "/chatbox/typing" {
			t.Errorf("message %d: wrong address %s", i, msg.Address)
		}
		if got := msg.Arguments[0].(bool); got != want {
			t.Errorf("message %d: expected typing=%v, got %v", i, want, got)
		}
	}
}
