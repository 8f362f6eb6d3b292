package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MandraVEVO/ecommerce/internal/config"
)

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		ssl     bool
		host    string
		wantSSL bool
	}{
		{"minio:9000", false, "minio:9000", false},
		{"minio:9000", true, "minio:9000", true},
		{"https://s3.example.com", false, "s3.example.com", true},
		{"http://localhost:9000", true, "localhost:9000", false},
	}
	for _, tt := range tests {
		host, ssl, err := splitEndpoint(tt.in, tt.ssl)
		require.NoError(t, err)
		assert.Equal(t, tt.host, host, tt.in)
		assert.Equal(t, tt.wantSSL, ssl, tt.in)
	}
}

func TestNewObjectStore(t *testing.T) {
	store, err := NewObjectStore(config.StorageConfig{
		Endpoint:    "http://localhost:9000",
		AccessKey:   "minio",
		SecretKey:   "minio123",
		AuditBucket: "marketplace-auth-audit",
	})
	require.NoError(t, err)
	assert.Equal(t, "marketplace-auth-audit", store.Bucket())
}
