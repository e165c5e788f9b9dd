package via

import (
	"io"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	undefined LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLogLevel maps "error", "warn", "info" and "debug" to a LogLevel.
// Unknown names yield LogLevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarn
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

// Plugin is an interface that Via plugins must implement.
// Plugins register themselves with the Via app via the Register method.
type Plugin interface {
	Register(v *V)
}

// Options defines configuration options for the via application
type Options struct {
	// The http server address. e.g. ':3000'
	ServerAddress string

	// Level of the logs to write.
	// Options: Error, Warn, Info, Debug.
	LogLvl LogLevel

	// LogOutput receives log lines. Defaults to a console writer on stderr.
	LogOutput io.Writer

	// The title of the HTML document.
	DocumentTitle string

	// SessionTTL is the number of seconds after which an idle tab is disposed.
	// Default is 30 minutes. Set to a negative value to disable expiry.
	SessionTTL int

	// Plugins to extend the capabilities of the `Via` application.
	Plugins []Plugin
}
