// Package logger предоставляет логирование с префиксом сервиса и асинхронной записью,
// чтобы не блокировать обработку запросов. Запись выполняет logrus в отдельной горутине.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const asyncBufferSize = 8192

type entry struct {
	level logrus.Level
	msg   string
}

var (
	prefix string
	base   = logrus.New()
	ch     chan entry
	once   sync.Once
)

func initLevel() {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug", "trace":
		base.SetLevel(logrus.DebugLevel)
	case "warn", "error":
		base.SetLevel(logrus.WarnLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}
	if os.Getenv("LOG_FORMAT") == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
	}
}

func initWorker() {
	initLevel()
	ch = make(chan entry, asyncBufferSize)
	go func() {
		for e := range ch {
			l := base.WithField("service", prefix)
			if prefix == "" {
				l = logrus.NewEntry(base)
			}
			l.Log(e.level, e.msg)
		}
	}()
}

func enqueue(level logrus.Level, msg string) {
	once.Do(initWorker)
	if !base.IsLevelEnabled(level) {
		return
	}
	select {
	case ch <- entry{level: level, msg: msg}:
	default:
		// Буфер полон: не блокируем, теряем лог
	}
}

// SetPrefix задаёт имя сервиса для всех последующих логов (например "workspace").
func SetPrefix(p string) {
	prefix = p
}

// SetLevel переопределяет уровень, прочитанный из LOG_LEVEL.
func SetLevel(level string) {
	once.Do(initWorker)
	if lvl, err := logrus.ParseLevel(level); err == nil {
		base.SetLevel(lvl)
	}
}

func Info(v ...any) {
	enqueue(logrus.InfoLevel, fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	enqueue(logrus.InfoLevel, fmt.Sprintf(format, v...))
}

// Debugf пишет только при LOG_LEVEL=debug.
func Debugf(format string, v ...any) {
	enqueue(logrus.DebugLevel, fmt.Sprintf(format, v...))
}

func Error(v ...any) {
	enqueue(logrus.ErrorLevel, fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	enqueue(logrus.ErrorLevel, fmt.Sprintf(format, v...))
}

// LogDuration логирует имя функции и время выполнения в миллисекундах.
// На уровне info пишутся только вызовы дольше 100ms; на debug: все.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if base.IsLevelEnabled(logrus.DebugLevel) || elapsed >= 100*time.Millisecond {
		enqueue(logrus.InfoLevel, fmt.Sprintf("fn=%s duration_ms=%d", fn, elapsed.Milliseconds()))
	}
}

// DeferLogDuration возвращает функцию для defer: defer logger.DeferLogDuration("chat.Send", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}
