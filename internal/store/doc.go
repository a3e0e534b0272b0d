// Package store is the local persistence layer of the sync agent.
//
// A [Manager] lazily opens one database made of named stores (see [Schema]),
// each with a key path, optional key generation and secondary indexes. The
// database is opened through an [Opener]: [SQLiteOpener] for the on-disk
// database and [MemoryOpener] for tests and tools. [Records] is the generic
// accessor used by the service layer.
package store
