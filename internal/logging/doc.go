// Package logging builds the slog loggers used across bootforge.
//
// It offers a console handler for interactive use and a JSON handler for
// machine consumption, multi-destination output (stdout plus a log file),
// and small attribute helpers so call sites stay uniform. Components
// should obtain a child logger via NewComponentLogger rather than adding
// ad hoc prefixes.
package logging
