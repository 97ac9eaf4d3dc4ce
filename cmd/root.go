// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	rpki "github.com/robert-scheck/rpki-client"
	"github.com/robert-scheck/rpki-client/log"
	"github.com/robert-scheck/rpki-client/metrics"
)

var (
	verbosity  int
	metricAddr string
	logFormat  string
)

// newRootCommand builds the rpki-client command tree: a repeatable -v flag
// gated by spec.md §6 ("level 0 emits only errors, higher levels emit
// warnings then informational traces"), and the validate/version
// subcommands.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "rpki-client",
		Short:         "Validate RPKI signed objects (certificates, manifests, ROAs, TALs)",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity; repeatable")
	root.PersistentFlags().StringVar(&metricAddr, "metrics-addr", "",
		"if set, serve Prometheus counters at this address for the duration of the command")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"diagnostic log format: text or json")
	root.AddCommand(newValidateCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newValidateCommand() *cobra.Command {
	var anchorPath string
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Parse and validate one or more RPKI objects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []rpki.Option{rpki.WithVerbosity(verbosity)}
			switch logFormat {
			case "json":
				opts = append(opts, rpki.WithLogger(log.NewJSON(cmd.ErrOrStderr(), jsonLogLevel(verbosity))))
			case "text":
			default:
				return fmt.Errorf("unrecognized --log-format %q, want text or json", logFormat)
			}
			v, err := rpki.NewValidator(opts...)
			if err != nil {
				return err
			}

			var anchor *rpki.Tal
			if anchorPath != "" {
				anchor, err = rpki.ParseTal(v, anchorPath)
				if err != nil {
					return fmt.Errorf("--anchor: %w", err)
				}
			}

			var m *metrics.Metrics
			if metricAddr != "" {
				reg := prometheus.NewRegistry()
				m = metrics.New(reg)
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				go func() {
					if err := metrics.Serve(ctx, metricAddr, reg); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "metrics: %s\n", err)
					}
				}()
			}

			failed := false
			for _, path := range args {
				kind := objectKind(path)
				m.ObserveAttempt(kind)
				if err := validateOne(v, anchor, path); err != nil {
					m.ObserveFailure(kind, failureReason(err))
					fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", err)
					failed = true
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", path)
			}
			if failed {
				return errValidationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&anchorPath, "anchor", "",
		"TAL file to verify .cer trust-anchor certificates against (spec.md §4.4)")
	return cmd
}

// jsonLogLevel maps a repeated -v count onto the log.Level scale, mirroring
// the Validator's own verbosity-to-level mapping so --log-format json
// produces the same severity gating as the default text logger.
func jsonLogLevel(n int) log.Level {
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

// errValidationFailed is returned by the validate RunE once any object in
// the argument list failed; main maps it onto exit code 1 without printing
// it again, since the per-object error was already written to stderr.
var errValidationFailed = fmt.Errorf("one or more objects failed validation")

// objectKind maps a path's extension to the metrics label for it, defaulting
// to the extension itself (without the dot) for anything unrecognized so an
// operator can still see attempts against the wrong kind of file.
func objectKind(path string) metrics.ObjectKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tal":
		return metrics.ObjectTal
	case ".cer":
		return metrics.ObjectCert
	case ".mft":
		return metrics.ObjectMft
	case ".roa":
		return metrics.ObjectRoa
	default:
		return metrics.ObjectKind(strings.TrimPrefix(filepath.Ext(path), "."))
	}
}

// failureReason extracts a FailureKind label from err for the metrics
// counter, falling back to "unknown" for errors this package did not raise.
func failureReason(err error) string {
	var pe *rpki.ParseError
	if errors.As(err, &pe) {
		return pe.Kind.String()
	}
	return "unknown"
}

// validateOne dispatches path to the parser matching its extension. There
// is no certificate chain available in this standalone CLI invocation
// (spec.md §6's test-harness surface parses objects individually), so
// manifests and ROAs are parsed with a nil parentCA: their eContent shape
// and internal profile are still fully checked, only the CMS signature and
// ROA coverage checks are skipped. When anchor is non-nil, a .cer argument
// is additionally checked against it via Tal.VerifyAnchor (spec.md §4.4).
func validateOne(v *rpki.Validator, anchor *rpki.Tal, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tal":
		_, err := rpki.ParseTal(v, path)
		return err
	case ".cer":
		_, xc, err := rpki.ParseCert(v, path, nil)
		if err != nil {
			return err
		}
		if anchor != nil {
			return anchor.VerifyAnchor(xc)
		}
		return nil
	case ".mft":
		_, err := rpki.ParseMft(v, nil, path, nil)
		return err
	case ".roa":
		_, err := rpki.ParseRoa(v, nil, path, nil, nil)
		return err
	default:
		return fmt.Errorf("%s: unrecognized file extension", path)
	}
}
