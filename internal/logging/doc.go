// Package logging provides opt-in file-based logging with rotation for Quarry.
// When the --debug flag is set, comprehensive logs are written to ~/.quarry/logs/
// for debugging and troubleshooting.
//
// By default (without --debug), logging is minimal and goes to stderr only, so
// indexing runs stay quiet unless something goes wrong.
package logging
