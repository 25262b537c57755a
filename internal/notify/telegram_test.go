package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

type fakeSender struct {
	messages map[int64][]string
	opts     [][]interface{}
	err      error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.messages == nil {
		f.messages = make(map[int64][]string)
	}
	chat, ok := to.(*tele.Chat)
	if !ok {
		return nil, fmt.Errorf("unexpected recipient type %T", to)
	}
	f.messages[chat.ID] = append(f.messages[chat.ID], fmt.Sprint(what))
	f.opts = append(f.opts, opts)
	return &tele.Message{}, nil
}

func TestNew_NoTokenIsNoop(t *testing.T) {
	n, err := New(Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, Noop{}, n)
	assert.NoError(t, n.Notify(context.Background(), "hello"))
}

func TestNew_TokenWithoutChat(t *testing.T) {
	_, err := New(Config{Token: "123:abc"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestTelegramNotifier_SendsEscapedPreformattedText(t *testing.T) {
	sender := &fakeSender{}
	n := newTelegramNotifier(sender, 42, zerolog.Nop())

	require.NoError(t, n.Notify(context.Background(), "Symbol  Shares\nA&B     <3>\n"))

	require.Len(t, sender.messages[42], 1)
	assert.Equal(t, "<pre>Symbol  Shares\nA&amp;B     &lt;3&gt;</pre>", sender.messages[42][0])
	assert.Equal(t, []interface{}{tele.ModeHTML}, sender.opts[0])
}

func TestTelegramNotifier_SplitsLongMessages(t *testing.T) {
	sender := &fakeSender{}
	n := newTelegramNotifier(sender, 7, zerolog.Nop())

	line := strings.Repeat("x", 999)
	msg := strings.Join([]string{line, line, line, line, line}, "\n")
	require.NoError(t, n.Notify(context.Background(), msg))

	parts := sender.messages[7]
	require.Len(t, parts, 2)
	joined := strings.TrimSuffix(strings.TrimPrefix(parts[0], "<pre>"), "</pre>") + "\n" +
		strings.TrimSuffix(strings.TrimPrefix(parts[1], "<pre>"), "</pre>")
	assert.Equal(t, msg, joined)
}

func TestTelegramNotifier_SendError(t *testing.T) {
	n := newTelegramNotifier(&fakeSender{err: errors.New("blocked")}, 1, zerolog.Nop())
	err := n.Notify(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestTelegramNotifier_CancelledContext(t *testing.T) {
	sender := &fakeSender{}
	n := newTelegramNotifier(sender, 1, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.Notify(ctx, "hi"), context.Canceled)
	assert.Empty(t, sender.messages)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"empty", "", 10, nil},
		{"fits", "abc\ndef", 10, []string{"abc\ndef"}},
		{"line boundary", "abc\ndef", 5, []string{"abc", "def"}},
		{"exact fit", "abc\ndef", 7, []string{"abc\ndef"}},
		{"hard cut", "abcdefgh", 3, []string{"abc", "def", "gh"}},
		{"trailing newlines", "abc\n\n", 10, []string{"abc"}},
		{"multibyte cut", "ééé", 3, []string{"é", "é", "é"}},
		{"rune wider than limit", "€a", 2, []string{"€", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, split(tt.text, tt.limit))
		})
	}
}

func TestSplit_KeepsRunesIntact(t *testing.T) {
	line := strings.Repeat("Доход €12 ", 60)
	chunks := split(line, 97)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), c)
		assert.LessOrEqual(t, len(c), 97)
	}
	assert.Equal(t, strings.TrimRight(line, "\n"), strings.Join(chunks, ""))
}
