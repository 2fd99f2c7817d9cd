// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logger is a small leveled logger with coloured level prefixes.
// It is silent until SetLevel raises it.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	OffLevel
)

var levelNames = [...]string{
	DebugLevel: "debug",
	InfoLevel:  "info",
	WarnLevel:  "warn",
	ErrorLevel: "error",
	OffLevel:   "off",
}

func (l Level) String() string {
	if l < DebugLevel || l > OffLevel {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel converts a level name ("debug", "info", "warn", "error", "off").
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	if strings.EqualFold(s, "warning") {
		return WarnLevel, nil
	}
	return OffLevel, fmt.Errorf("unknown log level %q", s)
}

var (
	defaultLogger *Logger

	debugPrintf = color.New(color.FgCyan).SprintfFunc()
	infoPrintf  = color.New(color.FgGreen).SprintfFunc()
	warnPrintf  = color.New(color.FgYellow).SprintfFunc()
	errorPrintf = color.New(color.FgRed).SprintfFunc()
)

type Logger struct {
	logger *log.Logger
	level  Level
	mu     sync.Mutex
}

func init() {
	defaultLogger = &Logger{
		logger: log.New(os.Stderr, "", log.LstdFlags),
		level:  OffLevel,
	}
}

func SetLevel(level Level) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.level = level
}

func GetLevel() Level {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	return defaultLogger.level
}

func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.logger = log.New(w, "", log.LstdFlags)

	// no colour unless writing to a terminal stream
	if f, ok := w.(*os.File); !ok || (f != os.Stdout && f != os.Stderr) {
		color.NoColor = true
	}
}

func logf(level Level, printf func(string, ...interface{}) string, prefix, format string, v ...interface{}) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	if defaultLogger.level <= level {
		defaultLogger.logger.Print(printf(prefix+format, v...))
	}
}

func Debug(format string, v ...interface{}) {
	logf(DebugLevel, debugPrintf, "[DEBUG] ", format, v...)
}

func Info(format string, v ...interface{}) {
	logf(InfoLevel, infoPrintf, "[INFO] ", format, v...)
}

func Warn(format string, v ...interface{}) {
	logf(WarnLevel, warnPrintf, "[WARN] ", format, v...)
}

func Error(format string, v ...interface{}) {
	logf(ErrorLevel, errorPrintf, "[ERROR] ", format, v...)
}
