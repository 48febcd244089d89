// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists harvested records durably and idempotently.
// Two interchangeable sinks exist: a SQLite store that upserts keyed
// rows, and a chunked append-only file store that streams one JSON
// record per line into size-bounded, rotated chunk files. Both serialize
// writes internally; callers may invoke them from many goroutines.
package store

import (
	"fmt"

	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

// Sink accepts finished records and stores them durably. Upserting the
// same record twice converges to the same stored state. Close flushes
// buffered output, persists the run summary, and releases resources;
// the sink is unusable afterwards.
type Sink interface {
	UpsertAuthor(author types.Author) error
	UpsertPublication(pub types.Publication) error
	Close(summary types.RunSummary) error
}

// PersistenceError reports a storage write failure. Storage is a hard
// dependency, so the scheduler treats this as fatal to the run; records
// already written remain valid.
type PersistenceError struct {
	// Op names the failing operation (e.g. "upsert author").
	Op string
	// Err is the underlying storage error.
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
