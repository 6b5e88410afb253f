package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"

	"github.com/auto-dns/docker-log-sentry/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, ParseLevel("DEBUG"), zerolog.DebugLevel)
	assert.Equal(t, ParseLevel(" warn "), zerolog.WarnLevel)
	assert.Equal(t, ParseLevel("chatty"), zerolog.InfoLevel)
	assert.Equal(t, ParseLevel(""), zerolog.InfoLevel)
}

func TestNewWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := New(&config.LoggingConfig{Level: "INFO"}, &buf)
	log.Info().Msg("hello")
	assert.Assert(t, bytes.Contains(buf.Bytes(), []byte("hello")))
	assert.Assert(t, bytes.Contains(buf.Bytes(), []byte(serviceName)))
}
