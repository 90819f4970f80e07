package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// viper keys for the global logger, bound to flags in cmd.
const (
	LevelKey   = "log.level"
	FormatKey  = "log.format"
	NoColorKey = "log.no_color"
)

// InitDefault sets up a conservative console logger so that messages emitted
// before flags and config are parsed still go somewhere readable.
func InitDefault() {
	log.Logger = newLogger(os.Stderr, "info", "console", false)
}

// Init replaces the global logger with one configured from viper.
// A nil writer means stderr.
func Init(out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	log.Logger = newLogger(out,
		viper.GetString(LevelKey),
		viper.GetString(FormatKey),
		viper.GetBool(NoColorKey),
	)
}

func newLogger(out io.Writer, level, format string, noColor bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: noColor}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
