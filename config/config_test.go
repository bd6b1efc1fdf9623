package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-auth-session/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	s, err := config.Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "1d", s.AccessLifetime)
	assert.Equal(t, "30d", s.RefreshLifetime)
	assert.Equal(t, "sqlite", s.DBDriver)
	assert.Equal(t, "sql", s.SessionBackend)
	assert.Equal(t, 12, s.BcryptCost)
	assert.Equal(t, "user", s.DefaultRole)
	assert.False(t, s.IsProduction())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("JWT_SECRET_ACCESS_TOKEN=from-file\nJWT_SECRET_REFRESH_TOKEN=refresh-file\nHTTP_ADDR=:9000\n"), 0o600))

	t.Setenv("HTTP_ADDR", ":9100")
	t.Setenv("JWT_ACCESS_TOKEN_EXPIRED", "2h")

	s, err := config.Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "from-file", s.AccessSecret)
	assert.Equal(t, ":9100", s.HTTPAddr)

	cfg, err := s.AuthConfig()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, cfg.AccessTTL, cfg.GetVerificationTTL())
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "memcached")
	_, err := config.Load(missingEnvFile(t))
	assert.Error(t, err)
}

func TestLoad_RejectsBadLifetime(t *testing.T) {
	t.Setenv("JWT_REFRESH_TOKEN_EXPIRED", "forever")
	_, err := config.Load(missingEnvFile(t))
	assert.Error(t, err)
}

func TestAuthConfig_RequiresDistinctSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET_ACCESS_TOKEN", "same")
	t.Setenv("JWT_SECRET_REFRESH_TOKEN", "same")

	s, err := config.Load(missingEnvFile(t))
	require.NoError(t, err)

	_, err = s.AuthConfig()
	assert.Error(t, err)
}

func TestParseLifetime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "1d", want: 24 * time.Hour},
		{in: "30d", want: 720 * time.Hour},
		{in: "15m", want: 15 * time.Minute},
		{in: "0d", wantErr: true},
		{in: "-1h", wantErr: true},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := config.ParseLifetime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
