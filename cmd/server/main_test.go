package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// recordingSink запоминает записи и считает вызовы Sync
type recordingSink struct {
	bytes.Buffer
	syncs int
}

func (s *recordingSink) Sync() error {
	s.syncs++
	return nil
}

func newRecordingLogger() (*zap.Logger, *recordingSink) {
	sink := &recordingSink{}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zap.DebugLevel)
	return zap.New(core), sink
}

func TestFinish(t *testing.T) {
	t.Run("run error is logged and flushed", func(t *testing.T) {
		logg, sink := newRecordingLogger()

		code := finish(logg, errors.New("listen tcp :8080: address already in use"))
		assert.Equal(t, 1, code)
		assert.Equal(t, 1, sink.syncs)
		assert.Contains(t, sink.String(), "address already in use")
	})

	t.Run("clean shutdown", func(t *testing.T) {
		logg, sink := newRecordingLogger()

		assert.Equal(t, 0, finish(logg, nil))
		assert.Equal(t, 1, sink.syncs)
		assert.Empty(t, sink.String())
	})
}
