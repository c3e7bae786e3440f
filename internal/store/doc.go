// Package store persists conversations for the chat backend.
//
// The whole conversation map lives in memory and is mirrored to one JSON
// file, keyed by conversation id. Every mutating call rewrites the file in
// full before returning: there is no incremental append on disk, so readers
// either see the previous complete state or the new one.
//
// Durability is soft. When the rewrite fails the in-memory mutation stands,
// the failure is logged, and the caller receives an error wrapping
// ErrPersist so it may retry the flush.
//
// Writes use a temp-file-plus-rename sequence for atomic replacement and a
// flock on a sidecar lock file so a second process cannot interleave
// rewrites of the same file.
package store
