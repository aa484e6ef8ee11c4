// Package model defines the shared types for the bootcheck CLI.
//
// This package contains plain data structures with no external dependencies.
// Nothing here is persisted: every value is produced by a single run
// (installer result, package listing, socket table snapshot) and discarded
// when the process exits.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries an exit code for proper OS process exit handling.
package model
