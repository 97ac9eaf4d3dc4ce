// SPDX-FileCopyrightText: 2022 Winni Neessen <winni@neessen.dev>
// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package rpki

import (
	"encoding/hex"
	"errors"
	"io"
	"os"

	"github.com/robert-scheck/rpki-client/log"
)

// Defaults
const (
	// DefaultVerbosity emits only errors, matching spec.md §6: "level 0
	// emits only errors, higher levels emit warnings then informational
	// traces."
	DefaultVerbosity = 0
)

// ErrInvalidVerbosity is returned if a negative verbosity is supplied
var ErrInvalidVerbosity = errors.New("verbosity must not be negative")

// ErrInvalidDigest is returned if an expected digest of the wrong length is supplied
var ErrInvalidDigest = errors.New("expected digest must be exactly 32 bytes (SHA-256)")

// Validator is the explicit context object threaded into every parser entry
// point. It replaces the source implementation's process-wide verbosity
// counter (spec.md §9 "Global state") with an ordinary value a caller
// constructs once and passes to ParseTal, ParseCert, ParseMft, and ParseRoa.
type Validator struct {
	// verbosity is a non-negative integer; level 0 emits only errors, higher
	// levels emit warnings then informational traces.
	verbosity int

	// logger receives diagnostic lines gated by verbosity.
	logger log.Logger

	// expectedDigest, if set, overrides the per-call expected SHA-256.
	expectedDigest *[32]byte

	// logOutput is used to build the default Stdlog sink; ignored once
	// WithLogger has installed a custom Logger.
	logOutput io.Writer

	// customLogger, if set by WithLogger, wins over the Stdlog built from
	// verbosity/logOutput.
	customLogger log.Logger
}

// Option returns a function that can be used for grouping Validator options
type Option func(*Validator) error

// NewValidator returns a new Validator with the given options applied. With
// no options, it logs only errors to os.Stderr via the standard library
// logger, matching DefaultVerbosity.
func NewValidator(opts ...Option) (*Validator, error) {
	v := &Validator{
		verbosity: DefaultVerbosity,
		logOutput: os.Stderr,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(v); err != nil {
			return v, err
		}
	}
	if v.customLogger != nil {
		v.logger = v.customLogger
	} else {
		v.logger = log.New(v.logOutput, stdlogLevel(v.verbosity))
	}
	return v, nil
}

// stdlogLevel maps a non-negative verbosity count onto the Stdlog Level
// scale, per spec.md §6: "level 0 emits only errors, higher levels emit
// warnings then informational traces."
func stdlogLevel(n int) log.Level {
	switch {
	case n <= 0:
		return log.LevelError
	case n == 1:
		return log.LevelWarn
	case n == 2:
		return log.LevelInfo
	default:
		return log.LevelDebug
	}
}

// WithVerbosity sets the Validator's verbosity level. A repeated CLI -v flag
// maps directly onto this value (see cmd/root.go).
func WithVerbosity(n int) Option {
	return func(v *Validator) error {
		if n < 0 {
			return ErrInvalidVerbosity
		}
		v.verbosity = n
		return nil
	}
}

// WithLogger overrides the Validator's logger entirely, e.g. to install the
// structured log.Jsonlog implementation
func WithLogger(l log.Logger) Option {
	return func(v *Validator) error {
		if l == nil {
			return errors.New("logger must not be nil")
		}
		v.customLogger = l
		return nil
	}
}

// WithOutput directs the default Stdlog sink to w instead of os.Stderr.
// Has no effect once WithLogger has installed a custom Logger.
func WithOutput(w io.Writer) Option {
	return func(v *Validator) error {
		if w == nil {
			return errors.New("output writer must not be nil")
		}
		v.logOutput = w
		return nil
	}
}

// WithExpectedDigest sets a default expected SHA-256 digest applied to every
// parse call made with this Validator that does not supply its own
func WithExpectedDigest(sum [32]byte) Option {
	return func(v *Validator) error {
		v.expectedDigest = &sum
		return nil
	}
}

// resolveExpectedDigest returns expectedSHA256 if non-nil, otherwise falls
// back to v's configured WithExpectedDigest value, if any. Every parser
// entry point (ParseCert, ParseValidateCMS, and transitively ParseMft and
// ParseRoa) calls this before reading its file, so a Validator-wide expected
// digest actually takes effect instead of being silently ignored.
func resolveExpectedDigest(v *Validator, expectedSHA256 *[32]byte) *[32]byte {
	if expectedSHA256 != nil {
		return expectedSHA256
	}
	if v != nil {
		return v.expectedDigest
	}
	return nil
}

// ParseSHA256Hex decodes a hex-encoded SHA-256 digest, such as one supplied
// on a CLI flag or read from a manifest's companion hash file, rejecting
// anything that does not decode to exactly 32 bytes.
func ParseSHA256Hex(s string) (*[32]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, ErrInvalidDigest
	}
	var sum [32]byte
	copy(sum[:], b)
	return &sum, nil
}

// Verbosity returns the configured verbosity level
func (v *Validator) Verbosity() int {
	return v.verbosity
}

// errorf, warnf, infof and debugf route a diagnostic line through the
// configured logger at their severity, matching spec.md §6: "Side effect: diagnostic lines on
// a verbosity-gated log channel."
func (v *Validator) errorf(format string, args ...interface{}) {
	v.logger.Errorf(format, args...)
}

func (v *Validator) warnf(format string, args ...interface{}) {
	v.logger.Warnf(format, args...)
}

func (v *Validator) infof(format string, args ...interface{}) {
	v.logger.Infof(format, args...)
}

func (v *Validator) debugf(format string, args ...interface{}) {
	v.logger.Debugf(format, args...)
}
