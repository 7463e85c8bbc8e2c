package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Crawler.RequestDelay)
	assert.Equal(t, 10*time.Second, cfg.Crawler.RequestTimeout)
	assert.Equal(t, 3, cfg.Crawler.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Crawler.RetryBaseDelay)
	assert.Equal(t, []string{"sephora", "nocibe", "marionnaud"}, cfg.Crawler.Sites)
	assert.NotEmpty(t, cfg.Crawler.UserAgents)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CRAWLER_SITES", "sephora, nocibe")
	t.Setenv("CRAWLER_REQUEST_DELAY", "500ms")
	t.Setenv("CRAWLER_TARGET_BRANDS", "dermalogica,murad")
	t.Setenv("DB_MAX_CONNS", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"sephora", "nocibe"}, cfg.Crawler.Sites)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawler.RequestDelay)
	assert.Equal(t, []string{"dermalogica", "murad"}, cfg.Crawler.TargetBrands)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Crawler.Sites = nil
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.Crawler.MaxRetries = 0
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.Crawler.RequestDelay = -time.Second
	assert.Error(t, cfg.Validate())
}
