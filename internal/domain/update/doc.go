// Package update contains core domain types for the update transaction.
//
// It defines Request (what to download and where), BackupRecord (where the
// previous content was moved), Outcome (what the HTTP transfer produced) and
// Result (the single value handed back to the exit-code layer).
package update
