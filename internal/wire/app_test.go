package wire

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growth-journal-api/internal/config"
	"growth-journal-api/internal/infrastructure/persistence/memory"
)

func writeKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "private.pem")
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func testConfig(keyPath string) *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.App.Version = "v-test"
	cfg.AI.BaseURL = "http://127.0.0.1:1"
	cfg.AI.PrivateKeyPath = keyPath
	cfg.AI.Timeout = time.Second
	cfg.AI.MaxAttempts = 1
	cfg.AI.DailyLimit = 20
	cfg.AI.Timezone = "Asia/Shanghai"
	cfg.AI.Ledger.Driver = "memory"
	cfg.Security.JWT.Secret = "s"
	return cfg
}

func TestBuildApp(t *testing.T) {
	cfg := testConfig(writeKey(t))
	app, err := buildApp(cfg, &DataLayer{UsageRepo: memory.NewUsageRecordRepository()})
	require.NoError(t, err)
	require.NotNil(t, app.Gateway)

	w := httptest.NewRecorder()
	app.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "v-test")

	// 内存账本下 postgres 视为未启用
	w = httptest.NewRecorder()
	app.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBuildApp_MissingKey(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing.pem"))
	_, err := buildApp(cfg, &DataLayer{UsageRepo: memory.NewUsageRecordRepository()})
	assert.Error(t, err)
}
