// SPDX-FileCopyrightText: Copyright (c) 2023 The go-mail Authors
// SPDX-FileCopyrightText: Copyright (c) 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

//go:build go1.21
// +build go1.21

package log

import (
	"fmt"
	"io"
	"log/slog"
)

// Jsonlog is a structured JSON logger that satisfies the Logger interface. Each
// entry carries a single "msg" field produced via fmt.Sprintf, so callers that
// already format their messages (as the parsers in this module do) get one JSON
// object per line without any further structure imposed on them.
type Jsonlog struct {
	l   Level
	log *slog.Logger
}

// NewJSON returns a new Jsonlog type that satisfies the Logger interface
func NewJSON(o io.Writer, l Level) *Jsonlog {
	lo := slog.HandlerOptions{Level: slogLevel(l)}
	lh := slog.NewJSONHandler(o, &lo)
	return &Jsonlog{
		l:   l,
		log: slog.New(lh),
	}
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// Debugf logs a debug message via the structured JSON logger
func (l *Jsonlog) Debugf(f string, v ...interface{}) {
	if l.l >= LevelDebug {
		l.log.Debug(fmt.Sprintf(f, v...))
	}
}

// Infof logs an info message via the structured JSON logger
func (l *Jsonlog) Infof(f string, v ...interface{}) {
	if l.l >= LevelInfo {
		l.log.Info(fmt.Sprintf(f, v...))
	}
}

// Warnf logs a warn message via the structured JSON logger
func (l *Jsonlog) Warnf(f string, v ...interface{}) {
	if l.l >= LevelWarn {
		l.log.Warn(fmt.Sprintf(f, v...))
	}
}

// Errorf logs an error message via the structured JSON logger
func (l *Jsonlog) Errorf(f string, v ...interface{}) {
	if l.l >= LevelError {
		l.log.Error(fmt.Sprintf(f, v...))
	}
}
