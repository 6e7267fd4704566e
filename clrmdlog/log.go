// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

// Package clrmdlog is the builder's ambient logging facility: a leveled
// Printf-style helper over a minimal Logger interface, built from a
// standard log.Logger wrapped in a level filter. directory.go uses only
// Infof from the call surface below.
package clrmdlog

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal leveled-logging capability the builder depends on.
type Logger interface {
	Log(level Level, msg string)
}

// StdLogger writes log lines to an io.Writer, filtered by a minimum level.
type StdLogger struct {
	mu       sync.Mutex
	out      *log.Logger
	minLevel Level
}

// NewStdLogger returns a Logger that writes to w at or above LevelInfo.
func NewStdLogger(w io.Writer) *StdLogger {
	return &StdLogger{out: log.New(w, "", log.LstdFlags), minLevel: LevelInfo}
}

// SetLevel adjusts the minimum level that is actually written.
func (s *StdLogger) SetLevel(level Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minLevel = level
}

// Log implements Logger.
func (s *StdLogger) Log(level Level, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.minLevel {
		return
	}
	s.out.Printf("[%s] %s", level, msg)
}

// Helper adds Printf-style convenience methods over a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, args ...any) {
	if h == nil || h.logger == nil {
		return
	}
	h.logger.Log(level, fmt.Sprintf(format, args...))
}

// Debugf logs at LevelDebug.
func (h *Helper) Debugf(format string, args ...any) { h.log(LevelDebug, format, args...) }

// Infof logs at LevelInfo.
func (h *Helper) Infof(format string, args ...any) { h.log(LevelInfo, format, args...) }

// Warnf logs at LevelWarn.
func (h *Helper) Warnf(format string, args ...any) { h.log(LevelWarn, format, args...) }

// Errorf logs at LevelError.
func (h *Helper) Errorf(format string, args ...any) { h.log(LevelError, format, args...) }
