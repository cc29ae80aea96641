// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder whose sink and colouring
//     are chosen by the caller (Setup),
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and a level override for lines that must always be shown,
//   - convenience functions (InfoKV, WarnKV, etc.).
//
// The updater core never writes to stdout directly; everything it reports goes
// through the logger stored in its context.
package logger
