package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir()) // keep a developer .env out of the test
	t.Setenv("VIPSPT_APPID", "00000051")
	t.Setenv("VIPSPT_SECRET_KEY", "k")
	t.Setenv("VIPSPT_SANDBOX", "true")
	t.Setenv("VIPSPT_RATE_LIMIT", "3")
	t.Setenv("VIPSPT_TIMEOUT_SEC", "bogus")
	t.Setenv("SIGN_DEBUG", "")

	cfg := Load()

	assert.Equal(t, "00000051", cfg.Appid)
	assert.Equal(t, "k", cfg.SecretKey)
	assert.True(t, cfg.Sandbox)
	assert.Equal(t, 3, cfg.RateLimit)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.False(t, cfg.SignDebug)
	assert.Equal(t, cfg.SandboxURL, cfg.GatewayURL())

	cfg.Sandbox = false
	assert.Equal(t, cfg.BaseURL, cfg.GatewayURL())
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VIPSPT_MERCHANT_ID=990581007426001\n"), 0o600))
	chdir(t, dir)
	t.Setenv("VIPSPT_MERCHANT_ID", "")
	os.Unsetenv("VIPSPT_MERCHANT_ID") // godotenv never overrides a variable that is already set

	assert.Equal(t, "990581007426001", Load().MerchantID)
}

func TestLoadRoutes(t *testing.T) {
	routes, err := LoadRoutes("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRoutes(), routes)
	_, ok := routes.Path("pay.openid")
	assert.False(t, ok, "openid has no published default path")

	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`routes:
  pay.pay: /v2/payOpen/bToC
  pay.refundQuery: ""
  pay.close: /payOpen/close.do
  pay.openid: /payOpen/openid.do
`), 0o600))

	routes, err = LoadRoutes(path)
	require.NoError(t, err)

	p, ok := routes.Path("pay.pay")
	assert.True(t, ok)
	assert.Equal(t, "/v2/payOpen/bToC", p)
	_, ok = routes.Path("pay.refundQuery")
	assert.False(t, ok)
	p, _ = routes.Path("pay.openid")
	assert.Equal(t, "/payOpen/openid.do", p)
	p, _ = routes.Path("pay.close")
	assert.Equal(t, "/payOpen/close.do", p)
	p, _ = routes.Path("pay.query")
	assert.Equal(t, "/payOpen/query.do", p)
}

func TestLoadRoutesErrors(t *testing.T) {
	_, err := LoadRoutes(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read routes")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes: [unclosed"), 0o600))
	_, err = LoadRoutes(path)
	assert.ErrorContains(t, err, "parse routes")
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
