package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fpg-order-system/config"
	"fpg-order-system/queue"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/log"
)

var (
	_ log.Logger   = (*KV)(nil)
	_ queue.Logger = (*KV)(nil)
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	logger.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestKVFields(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	kv := NewKV(logger).With("component", "dispatch")
	kv.Warn("Delivery failed", "order_number", "FPG-1", "error", errors.New("ses throttled"), "dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "Delivery failed", entry["msg"])
	assert.Equal(t, "dispatch", entry["component"])
	assert.Equal(t, "FPG-1", entry["order_number"])
	assert.Equal(t, "ses throttled", entry["error"])
	assert.Equal(t, "(MISSING)", entry["dangling"])
}

func TestKVRespectsLevel(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "text"})
	require.NoError(t, err)
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	NewKV(logger).Info("quiet")
	assert.Empty(t, buf.String())
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
}
