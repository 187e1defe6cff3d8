package storage

import (
	"context"
	"net/url"
	"testing"

	"social-chat/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageRequiresEndpoint(t *testing.T) {
	_, err := newStorage(config.MinIOConfig{Bucket: "chat-exports"})
	require.Error(t, err)
}

func TestPresignIsOffline(t *testing.T) {
	s, err := newStorage(config.MinIOConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio-secret",
		Bucket:    "chat-exports",
	})
	require.NoError(t, err)

	raw, err := s.presign(context.Background(), "exports/1/2-1700000000.json")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/chat-exports/exports/1/2-1700000000.json", u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "86400", u.Query().Get("X-Amz-Expires"))
}
