package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/intlshop/backend/internal/domain/order"
)

// StubAttachmentStorage builds unsigned URLs under BaseURL. It is used when
// object storage is disabled, for local runs and tests.
type StubAttachmentStorage struct {
	BaseURL string
	now     func() time.Time
}

// NewStubAttachmentStorage creates a stub rooted at https://storage.example.com
func NewStubAttachmentStorage() *StubAttachmentStorage {
	return &StubAttachmentStorage{
		BaseURL: "https://storage.example.com",
		now:     time.Now,
	}
}

// PresignUpload returns BaseURL/upload/<key>?expires=<RFC3339>
func (s *StubAttachmentStorage) PresignUpload(_ context.Context, key, _ string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	expiresAt := s.now().Add(ttl).UTC()
	return strings.TrimRight(s.BaseURL, "/") + "/upload/" + key + "?expires=" + url.QueryEscape(expiresAt.Format(time.RFC3339)), nil
}

var _ order.AttachmentStorage = (*StubAttachmentStorage)(nil)
