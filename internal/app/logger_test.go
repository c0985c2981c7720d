package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerJSONCarriesServiceAndEnv(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "staging", LogFormat: "json"})
	logger.Debug("stock scan", "products", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "agrodistri", rec["service"])
	assert.Equal(t, "staging", rec["env"])
	assert.Equal(t, "stock scan", rec["msg"])
	assert.EqualValues(t, 2, rec["products"])
}

func TestLoggerProductionDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "production"})
	logger.Debug("noise")
	assert.Zero(t, buf.Len())

	logger.Info("order created")
	assert.Contains(t, buf.String(), "service=agrodistri")
	assert.Contains(t, buf.String(), "env=production")
}

func TestLoggerNilConfig(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, nil).Info("boot")
	assert.Contains(t, buf.String(), "env=development")
}
