// Package logx wraps zerolog behind a small Logger/Service pair.
//
// The Service owns the sinks (console, optional file) and can swap them at
// runtime when the config file is reloaded; Loggers handed out earlier keep
// following the current sinks.
package logx
