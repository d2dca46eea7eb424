// Package storage provides the opaque byte-level key/value Backend that
// every higher layer of the store (catalog, cell, prolly tree, artifacts)
// is built on. A Backend knows nothing about facts, hashes, or trees; it
// only knows how to hold a byte string at a byte-string key, under an
// optimistic-concurrency Edition token, with prefix listing for traversal.
//
// Three implementations are provided: MemoryBackend for tests and
// single-process embedding, FileBackend for a single-node durable store
// backed by bbolt, and S3Backend for object-storage-backed deployments.
package storage
