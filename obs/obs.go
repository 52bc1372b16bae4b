// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package obs constructs the process-wide structured logger, a
// logiface.Logger[*izerolog.Event] backed by zerolog. It is built once at
// startup and threaded by reference into the session, scheduler, workers,
// and radio front end — never held as a package-level global, so tests can
// construct an isolated logger per case.
package obs

import (
	"io"
	"os"
	"time"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the concrete logger type threaded through the rest of the
// module. Aliasing it here keeps every other package's imports down to
// this one, instead of spreading logiface/izerolog/zerolog across the
// whole tree.
type Logger = logiface.Logger[*izerolog.Event]

// Level re-exports logiface's level type so callers configuring a Logger
// never need to import logiface directly.
type Level = logiface.Level

const (
	LevelEmergency     = logiface.LevelEmergency
	LevelAlert         = logiface.LevelAlert
	LevelCritical      = logiface.LevelCritical
	LevelError         = logiface.LevelError
	LevelWarning       = logiface.LevelWarning
	LevelNotice        = logiface.LevelNotice
	LevelInformational = logiface.LevelInformational
	LevelDebug         = logiface.LevelDebug
	LevelTrace         = logiface.LevelTrace
)

// Options controls how the root Logger is constructed.
type Options struct {
	// Writer receives the rendered log lines. Defaults to os.Stderr.
	Writer io.Writer
	// Pretty renders a human-readable console line instead of JSON.
	// Intended for interactive runs; production deployments leave this
	// false so output stays machine-parseable.
	Pretty bool
	// Level is the minimum enabled level. Nil defaults to
	// LevelInformational; a non-nil pointer is used as-is, so
	// LevelEmergency can still be selected explicitly.
	Level *Level
}

// New builds the root Logger per opts. Every worker, the scheduler, and
// the radio front end log through this one Logger, attaching fields like
// worker_id or radio_id to each event they emit.
func New(opts Options) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level := LevelInformational
	if opts.Level != nil {
		level = *opts.Level
	}

	zl := zerolog.New(w).With().Timestamp().Logger()

	return logiface.New[*izerolog.Event](
		izerolog.WithZerolog(zl),
		logiface.WithLevel[*izerolog.Event](level),
	)
}
