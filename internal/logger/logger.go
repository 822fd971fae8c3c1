package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Level はログレベルを表す
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel は文字列からレベルを解析する（大文字小文字は区別しない）
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

func (l Level) zerologLevel() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Logger はスレッドセーフなロガー
type Logger struct {
	mu       sync.Mutex
	zl       zerolog.Logger
	minLevel atomic.Int32
}

var (
	defaultMu sync.RWMutex
	// Default はデフォルトのロガー
	Default = NewConsole(os.Stdout, LevelInfo)
)

// New は JSON 行を出力するロガーを作成する
func New(out io.Writer, minLevel Level) *Logger {
	return newLogger(zerolog.New(out).With().Timestamp().Logger(), minLevel)
}

// NewConsole は人間向けの整形出力をするロガーを作成する
func NewConsole(out io.Writer, minLevel Level) *Logger {
	w := zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05.000", NoColor: true}
	return newLogger(zerolog.New(w).With().Timestamp().Logger(), minLevel)
}

func newLogger(zl zerolog.Logger, minLevel Level) *Logger {
	l := &Logger{zl: zl}
	l.minLevel.Store(int32(minLevel))
	return l
}

// SetDefault はデフォルトのロガーを差し替える
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	Default = l
}

func current() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return Default
}

// SetLevel はログレベルを設定する
func (l *Logger) SetLevel(level Level) {
	l.minLevel.Store(int32(level))
}

// Level は現在のログレベルを返す
func (l *Logger) Level() Level {
	return Level(l.minLevel.Load())
}

// log は指定されたレベルでログを出力する
func (l *Logger) log(level Level, scope string, format string, args ...any) {
	if level < l.Level() {
		return
	}

	// 複数ゴルーチンからの書き込みが行単位で混ざらないようにする
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := l.zl.WithLevel(level.zerologLevel())
	if scope != "" {
		ev = ev.Str("scope", scope)
	}
	ev.Msgf(format, args...)
}

// Debug はデバッグログを出力する
func (l *Logger) Debug(scope string, format string, args ...any) {
	l.log(LevelDebug, scope, format, args...)
}

// Info は情報ログを出力する
func (l *Logger) Info(scope string, format string, args ...any) {
	l.log(LevelInfo, scope, format, args...)
}

// Warn は警告ログを出力する
func (l *Logger) Warn(scope string, format string, args ...any) {
	l.log(LevelWarn, scope, format, args...)
}

// Error はエラーログを出力する
func (l *Logger) Error(scope string, format string, args ...any) {
	l.log(LevelError, scope, format, args...)
}

// グローバル関数（デフォルトロガーを使用）

// Debug はデバッグログを出力する
func Debug(scope string, format string, args ...any) {
	current().Debug(scope, format, args...)
}

// Info は情報ログを出力する
func Info(scope string, format string, args ...any) {
	current().Info(scope, format, args...)
}

// Warn は警告ログを出力する
func Warn(scope string, format string, args ...any) {
	current().Warn(scope, format, args...)
}

// Error はエラーログを出力する
func Error(scope string, format string, args ...any) {
	current().Error(scope, format, args...)
}
