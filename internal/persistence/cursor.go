// Package persistence holds helpers shared by the storage backends.
package persistence

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
)

var errCursorFormat = errors.New("invalid cursor format")

// EncodeCursor turns a listing cursor into an opaque URL-safe token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := c.StartedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token means the first page.
func DecodeCursor(token string) (*domain.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errCursorFormat
	}
	startedAt, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, errCursorFormat
	}
	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, errCursorFormat
	}
	return &domain.Cursor{StartedAt: ts, ID: id}, nil
}
