// Package archive keeps a durable record of summarization runs.
//
// A [Run] captures what was computed (the kind of summary, its options, the
// hash of the inputs) together with the annotated summary tree, so that a
// result can be looked up by run ID long after the cache entry has expired.
//
// Two backends are provided:
//   - [MongoArchive] stores runs in a MongoDB collection
//   - [MemoryArchive] keeps runs in process memory, for tests and the
//     single-user CLI
//
// [Null] discards everything and is the default when no archive is configured.
package archive
