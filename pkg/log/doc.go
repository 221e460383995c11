// Package log provides the logging abstraction shared by walletmesh components.
//
// Components never import a logging library directly. They accept a
// [Logger] and emit structured [Field] values; the zerolog adapter is the
// default implementation for binaries and a no-op logger is the default
// for library use.
//
// # Usage
//
// Wrap an existing zerolog logger:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or discard output in tests:
//
//	logger := log.NewNoopLogger()
//
// Scoped loggers attach fields to every message:
//
//	l := log.With(logger, log.String("component", "discovery"))
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
package log
