// Package logging provides structured logging for launchkit.
//
// The launcher writes JSON lines through log/slog to launchkit.log in the
// configured log directory. Tool processes write their own plain-text output
// next to it, one file per step and worker, and this package can locate those
// files again for the logs command.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers created
// via the With* methods share the parent's writer, so fan-out workers can each
// hold their own child logger.
//
// # Basic Usage
//
//	logger, err := logging.NewLoggerWithRotation(logDir, "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithOperation("lightmaps_dam").WithStep("worker").WithWorker(2)
//	log.Info("worker exited", "exit_code", 0)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"worker exited","operation":"lightmaps_dam","step":"worker","worker":2,"exit_code":0}
//
// # Log Rotation
//
// [RotatingWriter] rotates launchkit.log once it exceeds MaxSizeMB. Backups are
// named launchkit.log.1 (newest) through launchkit.log.N, gzipped when
// Compress is set.
//
// # Reading Logs Back
//
// [AggregateLogs] parses launchkit.log, [FilterLogs] narrows it by level,
// operation, step, worker, time or message, and [WriteEntries] renders the
// result as text or JSON. [FindToolLogs] lists captured tool output files
// matching a glob on the log name.
package logging
