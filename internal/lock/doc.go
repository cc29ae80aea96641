// Package lock provides the system-wide single-instance lock that serializes
// update transactions.
//
// The lock is an exclusive advisory lock on a file named after a fixed
// identifier. The operating system drops it when the owning process exits,
// so a crashed run never leaves the next one blocked.
package lock
