package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 日志接口，参数以 key/value 成对传入
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
	With(kv ...any) Logger
}

// Options 日志配置
type Options struct {
	Level   string   // debug, info, warn, error
	Writers []string // console, file
	File    string   // 日志文件路径
	MaxSize int      // 单个文件大小（MB）
	Backups int      // 保留的旧文件个数
}

type zlog struct {
	z zerolog.Logger
}

// New 创建基于 zerolog 的日志实例
func New(opts Options) Logger {
	var writers []io.Writer
	for _, w := range opts.Writers {
		switch strings.ToLower(w) {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
		case "file":
			file := opts.File
			if file == "" {
				file = filepath.Join("logs", "cdpharness.log")
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    orDefault(opts.MaxSize, 20),
				MaxBackups: orDefault(opts.Backups, 3),
				Compress:   false,
			})
		}
	}
	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	}
	return NewWithWriter(io.MultiWriter(writers...), opts.Level)
}

// NewWithWriter 输出到指定 writer（JSON 格式），主要用于测试
func NewWithWriter(w io.Writer, level string) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	z := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &zlog{z: z}
}

// NewNop 返回丢弃所有输出的日志实例
func NewNop() Logger {
	return &zlog{z: zerolog.Nop()}
}

func (l *zlog) Debug(msg string, kv ...any) { fields(l.z.Debug(), kv).Msg(msg) }
func (l *zlog) Info(msg string, kv ...any)  { fields(l.z.Info(), kv).Msg(msg) }
func (l *zlog) Warn(msg string, kv ...any)  { fields(l.z.Warn(), kv).Msg(msg) }
func (l *zlog) Error(msg string, kv ...any) { fields(l.z.Error(), kv).Msg(msg) }

func (l *zlog) Err(err error, msg string, kv ...any) {
	fields(l.z.Error().Err(err), kv).Msg(msg)
}

func (l *zlog) With(kv ...any) Logger {
	ctx := l.z.With()
	for i := 0; i+1 < len(kv); i += 2 {
		ctx = ctx.Interface(key(kv[i]), kv[i+1])
	}
	return &zlog{z: ctx.Logger()}
}

func fields(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i < len(kv); i += 2 {
		if i+1 >= len(kv) {
			e = e.Interface("extra", kv[i])
			break
		}
		switch v := kv[i+1].(type) {
		case string:
			e = e.Str(key(kv[i]), v)
		case int:
			e = e.Int(key(kv[i]), v)
		case int64:
			e = e.Int64(key(kv[i]), v)
		case bool:
			e = e.Bool(key(kv[i]), v)
		case time.Duration:
			e = e.Dur(key(kv[i]), v)
		case error:
			e = e.AnErr(key(kv[i]), v)
		default:
			e = e.Interface(key(kv[i]), v)
		}
	}
	return e
}

func key(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
