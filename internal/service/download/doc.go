// Package download performs the single streamed HTTP GET of an update.
//
// The response body is copied into the destination as it arrives through a
// buffer sized by the caller's hint; the payload is never held in memory as a
// whole. Transport failures are returned as errors, HTTP statuses are not.
package download
