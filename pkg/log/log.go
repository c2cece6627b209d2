package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields = logrus.Fields

// Options настройки логгера
type Options struct {
	Level    string // debug, info, warn, error
	Dir      string // каталог для файла логов; пусто - только stderr
	AppEnv   string // при "test" файл не пишется
	NoColors bool
}

// NewLogger создаёт логгер конвейера. Глобального состояния нет:
// логгер передаётся в сервисы явно.
func NewLogger(opts Options) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColors,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})

	writers := []io.Writer{os.Stderr}
	if opts.AppEnv != "test" && opts.Dir != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, fmt.Sprintf("pipeline-%s.log", time.Now().Format("2006-01-02"))),
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		}
		writers = append(writers, fileWriter)
	}

	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetReportCaller(true)

	return logger
}

// ErrorWithTraceID пишет ошибку с trace_id и возвращает его для вывода пользователю.
func ErrorWithTraceID(logger logrus.FieldLogger, fields Fields, msg string) string {
	traceID := "unknown"
	if id, err := uuid.NewRandom(); err == nil {
		traceID = id.String()
	}

	if fields == nil {
		fields = Fields{}
	}
	fields["trace_id"] = traceID
	logger.WithFields(fields).Error(msg)

	return traceID
}
