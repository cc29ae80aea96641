// Package updater runs the update transaction: it takes the single-instance
// lock, moves the existing target aside, streams the download into the target
// path, and then either commits (drops the backup, optionally relaunches) or
// rolls back (removes the partial file, restores the backup).
//
// Expected failures such as HTTP error statuses are reported as result values;
// the lock is released on every exit path.
//
// If the process is killed between backup and commit or rollback, the target
// may be missing or partial while <target>.backup holds the previous content.
// That window is not repaired automatically.
package updater
