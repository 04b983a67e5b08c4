// Package logx is the daemon's leveled logger: a thin wrapper over the
// stdlib log.Logger with level filtering and optional caller file:line
// in debug mode.
package logx

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// Level represents the logging verbosity, from most to least verbose.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

var (
	currentLevel atomic.Int32
	logger       = log.New(os.Stderr, "", 0)
	debugMode    atomic.Bool
)

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// Init sets the logging level and whether caller file:line is included.
func Init(level Level, debugEnabled bool) {
	currentLevel.Store(int32(level))
	debugMode.Store(debugEnabled)
}

// SetLevel changes the current logging level at runtime.
func SetLevel(level Level) {
	currentLevel.Store(int32(level))
}

func callerInfo() string {
	if !debugMode.Load() {
		return ""
	}
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return ""
	}
	parts := strings.Split(file, "/")
	return fmt.Sprintf("[%s:%d] ", parts[len(parts)-1], line)
}

func format(level, msg string, args ...interface{}) string {
	ts := time.Now().Format("2006/01/02 15:04:05")
	info := callerInfo()
	var m string
	if len(args) > 0 {
		m = fmt.Sprintf(msg, args...)
	} else {
		m = msg
	}
	return fmt.Sprintf("%s %s%s: %s", ts, info, level, m)
}

func Debug(format_ string, args ...interface{}) {
	if Level(currentLevel.Load()) > LevelDebug {
		return
	}
	logger.Output(2, format("DEBUG", format_, args...))
}

func Info(format_ string, args ...interface{}) {
	if Level(currentLevel.Load()) > LevelInfo {
		return
	}
	logger.Output(2, format("INFO", format_, args...))
}

func Warn(format_ string, args ...interface{}) {
	if Level(currentLevel.Load()) > LevelWarn {
		return
	}
	logger.Output(2, format("WARN", format_, args...))
}

func Error(format_ string, args ...interface{}) {
	if Level(currentLevel.Load()) > LevelError {
		return
	}
	logger.Output(2, format("ERROR", format_, args...))
}

// Fatal logs at error level and exits the process with status 1. Only
// startup failures use this; runtime errors are always structured results.
func Fatal(format_ string, args ...interface{}) {
	logger.Output(2, format("FATAL", format_, args...))
	os.Exit(1)
}
