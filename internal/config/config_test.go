package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, int64(20<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "intesters", cfg.Database.Database)
	assert.Equal(t, "admin", cfg.Auth.AdminRole)
	assert.Equal(t, time.UTC, cfg.Verification.Location)
	assert.Equal(t, 64*1024*1024, cfg.Verification.MaxPixels)
	assert.False(t, cfg.StorageEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("VERIFICATION_TIMEZONE", "Europe/Berlin")
	t.Setenv("S3_BUCKET", "proofs")
	t.Setenv("S3_ACCESS_KEY_ID", "minio")
	t.Setenv("S3_SECRET_ACCESS_KEY", "minio123")
	t.Setenv("S3_PRESIGN_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "Europe/Berlin", cfg.Verification.Location.String())
	assert.True(t, cfg.StorageEnabled())
	assert.Equal(t, 15*time.Minute, cfg.Storage.PresignTTL)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing mongo uri",
			env:  map[string]string{"MONGODB_URI": "", "JWT_SECRET": "s"},
			want: "MONGODB_URI is required",
		},
		{
			name: "no jwt key source",
			env:  map[string]string{"MONGODB_URI": "mongodb://x", "JWT_SECRET": "", "JWKS_URL": ""},
			want: "JWT_SECRET or JWKS_URL is required",
		},
		{
			name: "bucket without credentials",
			env:  map[string]string{"MONGODB_URI": "mongodb://x", "JWT_SECRET": "s", "S3_BUCKET": "proofs", "S3_ACCESS_KEY_ID": ""},
			want: "S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required",
		},
		{
			name: "bad timezone",
			env:  map[string]string{"MONGODB_URI": "mongodb://x", "JWT_SECRET": "s", "VERIFICATION_TIMEZONE": "Mars/Olympus"},
			want: "invalid VERIFICATION_TIMEZONE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
