package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewfunnel/pkg/email"
	"github.com/dmitrymomot/reviewfunnel/pkg/logger"
)

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	valid := email.Message{To: "owner@example.com", Subject: "Hi", BodyHTML: "<p>hi</p>"}
	require.NoError(t, valid.Validate())

	cases := map[string]email.Message{
		"bad recipient": {To: "nope", Subject: "Hi", BodyHTML: "<p>hi</p>"},
		"no subject":    {To: "owner@example.com", Subject: " ", BodyHTML: "<p>hi</p>"},
		"no body":       {To: "owner@example.com", Subject: "Hi"},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, msg.Validate(), email.ErrInvalidMessage)
		})
	}
}

func TestNewPostmarkSender(t *testing.T) {
	t.Parallel()

	_, err := email.NewPostmarkSender(email.Config{SenderEmail: "a@example.com", SupportEmail: "b@example.com"})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	_, err = email.NewPostmarkSender(email.Config{
		PostmarkServerToken:  "s",
		PostmarkAccountToken: "a",
		SenderEmail:          "invalid",
		SupportEmail:         "b@example.com",
	})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	s, err := email.NewPostmarkSender(email.Config{
		PostmarkServerToken:  "s",
		PostmarkAccountToken: "a",
		SenderEmail:          "a@example.com",
		SupportEmail:         "b@example.com",
	})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestNewFallsBackToDevSender(t *testing.T) {
	t.Parallel()

	s, err := email.New(email.Config{DevOutputDir: t.TempDir()}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, s)
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	s := email.NewDevSender(dir)

	err := s.Send(context.Background(), email.Message{
		To:       "owner@example.com",
		Subject:  "Payment failed",
		BodyHTML: "<p>update your card</p>",
		Tag:      "payment failed",
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var htmlFile, jsonFile string
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".html":
			htmlFile = filepath.Join(dir, e.Name())
		case ".json":
			jsonFile = filepath.Join(dir, e.Name())
		}
	}
	assert.True(t, strings.HasSuffix(htmlFile, "_payment_failed.html"))

	body, err := os.ReadFile(htmlFile)
	require.NoError(t, err)
	assert.Equal(t, "<p>update your card</p>", string(body))

	raw, err := os.ReadFile(jsonFile)
	require.NoError(t, err)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "owner@example.com", meta["to"])
	assert.Equal(t, "payment failed", meta["tag"])

	assert.ErrorIs(t, s.Send(context.Background(), email.Message{To: "bad"}), email.ErrInvalidMessage)
}
