package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRendersTemplate(t *testing.T) {
	box := &Outbox{}
	m, err := New(box)
	require.NoError(t, err)

	err = m.Send(context.Background(), "alice@example.com", "Your code", "password_otp", map[string]any{
		"Name": "Alice", "Code": "123456", "ValidFor": "10 minutes",
	})
	require.NoError(t, err)

	msg, ok := box.Last()
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Your code", msg.Subject)
	assert.Contains(t, msg.HTML, "<strong>123456</strong>")
	assert.Contains(t, msg.HTML, "Hi Alice")
}

func TestTemplateEscapesInput(t *testing.T) {
	box := &Outbox{}
	m, err := New(box)
	require.NoError(t, err)

	require.NoError(t, m.Send(context.Background(), "x@example.com", "Reset", "password_reset", map[string]any{
		"Name": "<script>", "Link": "https://shop.test/reset?token=abc", "ValidFor": "1 hour",
	}))
	msg, _ := box.Last()
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "token=abc")
}

func TestUnknownTemplate(t *testing.T) {
	m, err := New(&Outbox{})
	require.NoError(t, err)
	assert.Error(t, m.Send(context.Background(), "x@example.com", "s", "nope", nil))
}

func TestLogSender(t *testing.T) {
	var got Message
	s := LogSender{Log: func(m Message) { got = m }}
	require.NoError(t, s.Send(context.Background(), Message{To: "a@b.c", Subject: "hi"}))
	assert.Equal(t, "hi", got.Subject)
}
