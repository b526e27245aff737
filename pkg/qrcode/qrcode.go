// Package qrcode renders the printable QR code that sends diners to a
// restaurant's review funnel.
package qrcode

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent   = errors.New("qrcode: content cannot be empty")
	ErrInvalidBase    = errors.New("qrcode: invalid funnel base url")
	ErrFailedToRender = errors.New("qrcode: failed to generate")
)

const (
	DefaultSize = 256
	MaxSize     = 2048
)

// PNG encodes content as a PNG QR code. Size is clamped to (0, MaxSize];
// non-positive values use DefaultSize.
func PNG(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	switch {
	case size <= 0:
		size = DefaultSize
	case size > MaxSize:
		size = MaxSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrFailedToRender, err)
	}
	return png, nil
}

// DataURI returns the PNG wrapped in a data:image/png;base64 URI.
func DataURI(content string, size int) (string, error) {
	png, err := PNG(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// FunnelURL joins the public funnel base URL with the tenant id,
// e.g. https://r.example.com/f/<tenant>.
func FunnelURL(base, tenantID string) (string, error) {
	if strings.TrimSpace(tenantID) == "" {
		return "", ErrEmptyContent
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidBase
	}
	return u.JoinPath("f", tenantID).String(), nil
}
