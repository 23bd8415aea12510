package logging

import (
	"bytes"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewDebugLogger returns a logger that records everything into a buffer.
// Used by tests to assert on emitted log lines.
func NewDebugLogger() (*zap.SugaredLogger, *bytes.Buffer) {
	buffer := &bytes.Buffer{}
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: "\t",
	})
	logger := zap.New(zapcore.NewCore(
		encoder,
		zapcore.AddSync(buffer),
		zapcore.DebugLevel,
	)).Sugar()
	return logger, buffer
}
