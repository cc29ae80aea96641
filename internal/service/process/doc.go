// Package process starts the freshly written executable as a detached process
// and inspects the process table for running copies of a target.
package process
