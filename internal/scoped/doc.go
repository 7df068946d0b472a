// Package scoped implements the Scoped Installer: it resolves the
// Environment Root, activates the configured environment from it, and runs
// the Install Target inside that environment.
//
// The three stages run as an explicit pipeline:
//
//	resolve → activate → install
//
// Each stage runs only if the previous one succeeded. The report's exit
// code is zero only when every stage succeeded, and otherwise carries the
// exit code of the stage that failed. Nothing is retried or rolled back.
package scoped
