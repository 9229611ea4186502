package monitoring

import (
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/banshee-data/huskylens/internal/config"
	"github.com/banshee-data/huskylens/internal/huskylens"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "husky.log")
	logger, err := NewLogger(config.LoggingConfig{
		Level:  "debug",
		Format: "json",
		File:   config.LumberjackConfig{Filename: logFile, MaxSizeMB: 1},
	})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	logger.Info("hello")
	_ = logger.Sync()

	_, err = NewLogger(config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestHexBytes(t *testing.T) {
	assert.Equal(t, "55 aa 11 00 2c 3c", hexBytes([]byte{0x55, 0xAA, 0x11, 0x00, 0x2C, 0x3C}))
	assert.Equal(t, "", hexBytes(nil))
}

func TestLogObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	obs := NewLogObserver(zap.New(core))

	obs.Observe(huskylens.Event{Kind: huskylens.EventFrameSent, Command: huskylens.CommandRequestKnock, Raw: []byte{0x55, 0xAA}})
	obs.Observe(huskylens.Event{Kind: huskylens.EventFrameReceived, Command: huskylens.CommandReturnOK, Raw: []byte{0x2E}})
	obs.Observe(huskylens.Event{Kind: huskylens.EventFrameRejected, Err: &huskylens.ChecksumMismatchError{Expected: 1, Received: 2}})

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "write", entries[0].Message)
	assert.Equal(t, "55 aa", entries[0].ContextMap()["bytes"])
	assert.Equal(t, "REQUEST_KNOCK", entries[0].ContextMap()["command"])
	assert.Equal(t, "read", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "checksum", entries[2].ContextMap()["kind"])
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	obs.Observe(huskylens.Event{Kind: huskylens.EventFrameSent})
	obs.Observe(huskylens.Event{Kind: huskylens.EventFrameReceived})
	obs.Observe(huskylens.Event{Kind: huskylens.EventFrameReceived})
	obs.Observe(huskylens.Event{Kind: huskylens.EventFrameRejected, Err: &huskylens.ResponseLengthError{Stage: huskylens.StageHeader, Expected: 5}})
	obs.Observe(huskylens.Event{Kind: huskylens.EventFrameRejected, Err: errors.New("unplugged")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Frames.WithLabelValues("received")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FrameErrors.WithLabelValues("length")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FrameErrors.WithLabelValues("io")))
}

func TestMetrics_ObserveSnapshot(t *testing.T) {
	m := NewMetrics()
	m.ObserveSnapshot(config.KindBlocks, 3, nil)
	m.ObserveSnapshot(config.KindBlocks, 2, nil)
	m.ObserveSnapshot(config.KindBlocks, 0, errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Snapshots.WithLabelValues("blocks", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Snapshots.WithLabelValues("blocks", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Detections.WithLabelValues("blocks")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LastCount.WithLabelValues("blocks")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "huskylens_detections_total"))
}
