package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment selects the output format.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// ParseEnvironment maps unknown values to Development.
func ParseEnvironment(v string) Environment {
	if Environment(strings.ToLower(v)) == Production {
		return Production
	}
	return Development
}

// Options configures the global logger.
type Options struct {
	Environment Environment
	Level       string    // zerolog level name, empty keeps the environment default
	Writer      io.Writer // defaults to stderr
}

var DefaultOptions = Options{Environment: Development}

func safe(opts ...Options) Options {
	if len(opts) == 0 {
		return DefaultOptions
	}
	return opts[0]
}

// Init installs the global logger: JSON at info level in production,
// a console writer at debug level otherwise.
func Init(opts ...Options) {
	o := safe(opts...)
	w := o.Writer
	if w == nil {
		w = os.Stderr
	}

	level := zerolog.DebugLevel
	if o.Environment == Production {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		level = zerolog.InfoLevel
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).With().Timestamp().Caller().Logger()
	}
	if o.Level != "" {
		if l, err := zerolog.ParseLevel(o.Level); err == nil {
			level = l
		}
	}
	log.Logger = log.Logger.Level(level)
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
