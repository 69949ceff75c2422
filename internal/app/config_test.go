package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/bootboard/bootboard/testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, time.Minute, cfg.IdentityCacheTTL)
	assert.Equal(t, "./uploads", cfg.UploadDir)
	assert.Equal(t, "board", cfg.UploadBoardPath)
	assert.Equal(t, "editor", cfg.UploadEditorPath)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.UsesS3())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			JWTSecret:        testSecret,
			JWTTTL:           time.Hour,
			UploadDir:        "/tmp/uploads",
			UploadBoardPath:  "board",
			UploadEditorPath: "editor",
			UploadMaxBytes:   1 << 20,
			StorageDriver:    "disk",
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "valid"},
		{name: "short secret", mutate: func(c *Config) { c.JWTSecret = "short" }, errMsg: "at least 32 bytes"},
		{name: "zero ttl", mutate: func(c *Config) { c.JWTTTL = 0 }, errMsg: "ttl"},
		{name: "zero upload limit", mutate: func(c *Config) { c.UploadMaxBytes = 0 }, errMsg: "upload max bytes"},
		{name: "unknown driver", mutate: func(c *Config) { c.StorageDriver = "ftp" }, errMsg: "unknown storage driver"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.StorageDriver = "s3" }, errMsg: "s3 bucket"},
		{name: "s3 with bucket", mutate: func(c *Config) { c.StorageDriver = "S3"; c.S3Bucket = "files" }},
		{name: "same subdirectories", mutate: func(c *Config) { c.UploadEditorPath = "/board/" }, errMsg: "must differ"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			if tc.mutate != nil {
				tc.mutate(&cfg)
			}
			err := cfg.Validate()
			if tc.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel(&Config{LogLevel: "debug"}).String())
	assert.Equal(t, "WARN", parseLevel(&Config{LogLevel: "WARNING"}).String())
	assert.Equal(t, "INFO", parseLevel(&Config{LogLevel: "bogus"}).String())
	assert.Equal(t, "INFO", parseLevel(nil).String())
}

func TestInTestMode(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())
}
