// Package email sends transactional notifications through Postmark, or to
// disk during development.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound email.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidAddress reports whether s looks like a deliverable address.
func ValidAddress(s string) bool { return emailRegex.MatchString(s) }

// Validate checks the recipient, subject and body.
func (m Message) Validate() error {
	switch {
	case !ValidAddress(m.To):
		return fmt.Errorf("%w: recipient %q", ErrInvalidMessage, m.To)
	case strings.TrimSpace(m.Subject) == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	case strings.TrimSpace(m.BodyHTML) == "":
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// New returns a Postmark sender when tokens are configured and a DevSender
// otherwise.
func New(cfg Config, log *slog.Logger) (Sender, error) {
	if cfg.PostmarkEnabled() {
		return NewPostmarkSender(cfg)
	}
	if log != nil {
		log.Warn("postmark tokens not set, emails are written to disk", slog.String("dir", cfg.DevOutputDir))
	}
	return NewDevSender(cfg.DevOutputDir), nil
}
