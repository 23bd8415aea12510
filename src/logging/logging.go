package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the run logger. Console output goes to stderr so cron can
// capture it; every line carries a timestamp and level. When logFile is
// non-nil all levels are additionally written there.
func NewLogger(stderr io.Writer, logFile *os.File, verbose bool) *zap.SugaredLogger {
	var cores []zapcore.Core

	if logFile != nil {
		cores = append(cores, fileCore(logFile))
	}
	cores = append(cores, consoleCore(stderr, verbose))

	return zap.New(zapcore.NewTee(cores...)).Sugar()
}

func consoleCore(w io.Writer, verbose bool) zapcore.Core {
	levels := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		if verbose {
			return true
		}
		return l >= zapcore.InfoLevel
	})

	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: "\t",
	})
	return zapcore.NewCore(encoder, zapcore.AddSync(w), levels)
}

func fileCore(logFile *os.File) zapcore.Core {
	// Log all levels to the file regardless of --verbose.
	levels := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return true })

	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: "\t",
	})
	return zapcore.NewCore(encoder, logFile, levels)
}

// LevelWriter adapts a logger to io.Writer so subprocess output can be
// streamed into the log. Each write is split into lines and logged at the
// configured level.
type LevelWriter struct {
	level  zapcore.Level
	logger *zap.SugaredLogger
}

func ToDebugWriter(l *zap.SugaredLogger) *LevelWriter {
	return &LevelWriter{zapcore.DebugLevel, l}
}

func ToWarnWriter(l *zap.SugaredLogger) *LevelWriter {
	return &LevelWriter{zapcore.WarnLevel, l}
}

func (w *LevelWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		switch w.level {
		case zapcore.DebugLevel:
			w.logger.Debug(line)
		case zapcore.WarnLevel:
			w.logger.Warn(line)
		default:
			w.logger.Info(line)
		}
	}
	return len(p), nil
}
