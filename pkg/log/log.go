// Copyright 2026 ETH Zurich
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is a thin layer over zap. Log calls take a message and an
// even list of key/value context pairs:
//
//	log.Info("Class created", "class", id, "parent", parent)
package log

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scionproto/hfsc/pkg/private/serrors"
)

// Level is the log level.
type Level zapcore.Level

// The different log levels.
const (
	DebugLevel = Level(zapcore.DebugLevel)
	InfoLevel  = Level(zapcore.InfoLevel)
	ErrorLevel = Level(zapcore.ErrorLevel)
)

// Logger describes the logger interface.
type Logger interface {
	New(ctx ...any) Logger
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Enabled(lvl Level) bool
}

var (
	mu   sync.RWMutex
	root *logger = &logger{logger: zap.NewNop()}
)

type logger struct {
	logger *zap.Logger
}

// New creates a logger with the given context.
func New(ctx ...any) Logger {
	return Root().New(ctx...)
}

// FromZap wraps l as a Logger.
func FromZap(l *zap.Logger) Logger {
	return &logger{logger: l}
}

// Root returns the root logger. It's a logger without any context.
func Root() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

func (l *logger) New(ctx ...any) Logger {
	return &logger{logger: l.logger.With(convertCtx(ctx)...)}
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.logger.Debug(msg, convertCtx(ctx)...)
}

func (l *logger) Info(msg string, ctx ...any) {
	l.logger.Info(msg, convertCtx(ctx)...)
}

func (l *logger) Error(msg string, ctx ...any) {
	l.logger.Error(msg, convertCtx(ctx)...)
}

func (l *logger) Enabled(lvl Level) bool {
	return l.logger.Core().Enabled(zapcore.Level(lvl))
}

// Debug logs at debug level.
func Debug(msg string, ctx ...any) {
	Root().Debug(msg, ctx...)
}

// Info logs at info level.
func Info(msg string, ctx ...any) {
	Root().Info(msg, ctx...)
}

// Error logs at error level.
func Error(msg string, ctx ...any) {
	Root().Error(msg, ctx...)
}

// Discard sets the root logger up to discard all log entries. This is useful
// for testing.
func Discard() {
	setRoot(zap.NewNop())
}

// Setup configures the root logger according to cfg. It must be called
// before any goroutine logs.
func Setup(cfg Config) error {
	lvl, err := ParseLevel(cfg.Console.Level)
	if err != nil {
		return serrors.Wrap("parsing console level", err)
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch cfg.Console.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "human", "":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return serrors.New("unknown console format", "format", cfg.Console.Format)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zapcore.Level(lvl))
	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if cfg.Console.StacktraceLevel != "" {
		stLvl, err := ParseLevel(cfg.Console.StacktraceLevel)
		if err != nil {
			return serrors.Wrap("parsing stacktrace level", err)
		}
		opts = append(opts, zap.AddStacktrace(zapcore.Level(stLvl)))
	}
	setRoot(zap.New(core, opts...))
	return nil
}

// ParseLevel parses the textual representation of a level.
func ParseLevel(lvl string) (Level, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return DebugLevel, serrors.New("unknown level", "level", lvl)
	}
}

// Flush writes the logs to the underlying buffer.
func Flush() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.logger.Sync()
}

// HandlePanic catches panics and logs them.
func HandlePanic() {
	if msg := recover(); msg != nil {
		Error("Panic", "msg", msg, "stack", string(debug.Stack()))
		Flush()
		panic(msg)
	}
}

func setRoot(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	root = &logger{logger: l}
	zap.ReplaceGlobals(l)
}

func convertCtx(ctx []any) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(ctx[i]), ctx[i+1]))
	}
	return fields
}
