// Package logger wraps zap for the packager:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and the verbose switch used by the CLI,
//   - convenience functions (Infof, DebugKV, etc.).
//
// Every pipeline stage receives a context and extracts its logger from it,
// so run-scoped fields such as the run identifier follow each message.
package logger
