// Package logger provides leveled logging for keysmith CLI commands.
//
// The logger supports multiple verbosity levels controlled by command-line
// flags. Output is formatted with colored prefixes.
//
// # Verbosity Levels
//
// Logging behavior is controlled by two flags:
//
//   - --verbose: Shows info messages
//   - --debug: Shows info and debug messages, including per-stage pipeline details
//
// Warnings and errors are always shown on stderr.
//
// # Log Methods
//
//	Logger.Infof()           // Shown with --verbose or --debug
//	Logger.Debugf()          // Shown only with --debug
//	Logger.Warnf()           // Always shown
//	Logger.Errorf()          // Always shown
//	Logger.ErrorfAndReturn() // Always shown, returns the error
//
// # Usage
//
// Create a logger with the desired verbosity:
//
//	log := Logger{Verbose: verbose, Debug: debug}
//	log.Infof("Loaded %d keys", count)
//
// Commands create a logger in their PersistentPreRun and pass it to
// internal functions. The operation log shown to users is separate; this
// logger is for diagnostics.
package logger
