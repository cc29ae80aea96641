// Package backup moves a target file aside before it is overwritten and
// brings it back or discards it afterwards.
//
// Every move is a single rename, so the previous content is always present
// under exactly one of the two names.
package backup
