package lib

import (
	"io"
	"os"
	"runtime"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	LogTimeFormat = "2006-01-02T15:04:05.000"
)

func consoleWriter() zerolog.ConsoleWriter {
	if runtime.GOOS == "windows" {
		return zerolog.ConsoleWriter{Out: colorable.NewColorableStdout(), TimeFormat: LogTimeFormat}
	}
	return zerolog.ConsoleWriter{Out: os.Stdout, NoColor: false, TimeFormat: LogTimeFormat}
}

// ZeroConsoleLog configures the global logger to write human-readable
// output to stdout only.
func ZeroConsoleLog() {
	log.Logger = log.Output(consoleWriter())
}

// ZeroConsoleAndFileLog configures the global logger to write to both the
// console and an append-only log file.
func ZeroConsoleAndFileLog(filename string) {
	logFile, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("Error setting up log file, using console only")
		ZeroConsoleLog()
		return
	}

	mw := io.MultiWriter(logFile, consoleWriter())
	log.Logger = zerolog.New(mw).With().Timestamp().Logger()
}

// ZeroJSONAndFileLog configures the global logger to write structured JSON
// lines to both stdout and an append-only log file.
func ZeroJSONAndFileLog(filename string) {
	logFile, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("Error setting up log file, using stdout only")
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}

	mw := io.MultiWriter(logFile, os.Stdout)
	log.Logger = zerolog.New(mw).With().Timestamp().Logger()
}

// ZeroFileLog configures the global logger to write only to an append-only
// log file. Stdout stays untouched, which the MCP stdio transport requires
// since it speaks its protocol over stdout.
func ZeroFileLog(filename string) {
	logFile, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Error().Err(err).Str("file", filename).Msg("Error setting up log file, using stderr")
		return
	}

	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()
}
