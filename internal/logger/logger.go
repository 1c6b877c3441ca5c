// Package logger настраивает глобальный zerolog-логгер сервиса.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init выставляет уровень и консольный вывод в stderr.
func Init(level string, debug bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	SetOutput(os.Stderr)
}

// SetOutput переключает вывод, например на io.Discard в тестах.
func SetOutput(w io.Writer) {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// Get возвращает дочерний логгер с полем component.
func Get(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
