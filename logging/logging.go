package logging

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Aanu1995/Virtual-Tourist/consts"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKeyType string

const (
	loggerKey = loggerKeyType("logger")

	memoryLines = 2000
)

var (
	rootLogger *zap.Logger
	memory     *memoryLogs
	baseCores  []zapcore.Core
)

func init() {
	devmode := consts.IsDevMode()
	memory = newMemoryLogs(memoryLines)

	var consoleEncoder, jsonEncoder zapcore.Encoder
	if devmode {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		jsonEncoder = zapcore.NewJSONEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig())
		jsonEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	filter := levelFilter(devmode)
	baseCores = []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), filter),
		zapcore.NewCore(jsonEncoder, memory, filter),
	}
	rootLogger = zap.New(zapcore.NewTee(baseCores...))
	rootLogger.With(zap.Bool("devmode", devmode)).Debug("Logging initialized")
}

func levelFilter(devmode bool) zap.LevelEnablerFunc {
	min := zapcore.InfoLevel
	if devmode {
		min = zapcore.DebugLevel
	}
	return zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= min
	})
}

// AddFile additionally writes JSON formatted logs to the given file. It must
// be called before any logger is derived from the root logger.
func AddFile(path string) (io.Closer, error) {
	logfile, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	devmode := consts.IsDevMode()
	var encoderConfig zapcore.EncoderConfig
	if devmode {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}
	cores := append([]zapcore.Core{}, baseCores...)
	cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.Lock(logfile), levelFilter(devmode)))
	rootLogger = zap.New(zapcore.NewTee(cores...))
	return logfile, nil
}

// Dump writes the most recent log lines kept in memory to w
func Dump(w io.Writer, reverse bool) error {
	return memory.Export(w, reverse)
}

// From returns the logger of the current context, if no logger is available, returns the root logger
func From(ctx context.Context) *zap.Logger {
	l := ctx.Value(loggerKey)
	if l == nil {
		return rootLogger
	}
	return l.(*zap.Logger)
}

func SubFrom(ctx context.Context, name string) (*zap.Logger, context.Context) {
	logger := From(ctx).Named(name)
	return logger, Context(ctx, logger)
}

func Context(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = rootLogger
	}
	return context.WithValue(ctx, loggerKey, logger)
}

func FromWithNameAndFields(ctx context.Context, name string, fields ...zapcore.Field) (*zap.Logger, context.Context) {
	logger := From(ctx).With(fields...).Named(name)
	ctx = Context(ctx, logger)
	return logger, ctx
}

func FromWithFields(ctx context.Context, fields ...zapcore.Field) (*zap.Logger, context.Context) {
	logger := From(ctx).With(fields...)
	ctx = Context(ctx, logger)
	return logger, ctx
}
