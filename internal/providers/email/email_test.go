package email

import (
	"context"
	"strings"
	"testing"

	"github.com/smallbiznis/teamspace/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNoOpProviderLogsMaskedPreview(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	provider := NewNoOp(zap.New(core))

	delivered, err := provider.Send(context.Background(), Message{
		To:      "bob@example.com",
		Subject: "You're invited to Acme",
		Text:    "Join here: http://localhost:3000/invites/abcdefghijklmnopqrstuvwxyz0123456789ABCDEFG",
		Tags:    map[string]string{"category": "invite"},
	})
	require.NoError(t, err)
	assert.False(t, delivered)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "bob@example.com", fields["to"])
	assert.Equal(t, "invite", fields["tag.category"])
	preview := fields["preview"].(string)
	assert.NotContains(t, preview, "abcdefghijklmnopqrstuvwxyz")
	assert.True(t, strings.HasSuffix(preview, "****DEFG"))
}

func TestBuildMessageMultipart(t *testing.T) {
	body, err := buildMessage("noreply@example.com", Message{
		To:      "bob@example.com",
		Subject: "You're invited to Café",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	require.NoError(t, err)

	raw := string(body)
	assert.Contains(t, raw, "From: noreply@example.com\r\n")
	assert.Contains(t, raw, "To: bob@example.com\r\n")
	assert.Contains(t, raw, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, raw, "=?utf-8?q?")
	assert.Contains(t, raw, "text/plain; charset=UTF-8")
	assert.Contains(t, raw, "plain body")
	assert.Contains(t, raw, "<p>html body</p>")
}

func TestSMTPSendRequiresRecipient(t *testing.T) {
	delivered, err := NewSMTP(Config{Host: "localhost", Port: 2525, From: "a@b.c"}).Send(context.Background(), Message{})
	require.Error(t, err)
	assert.False(t, delivered)
}

func TestNewFromConfigSelectsTransport(t *testing.T) {
	log := zap.NewNop()

	_, isNoop := NewFromConfig(config.Config{}, log).(*NoOpProvider)
	assert.True(t, isNoop)

	cfg := config.Config{Email: config.EmailConfig{From: "noreply@example.com", SMTPHost: "smtp.example.com", SMTPPort: 587}}
	_, isSMTP := NewFromConfig(cfg, log).(*SMTPProvider)
	assert.True(t, isSMTP)
}
