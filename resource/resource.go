// Package resource tracks externally created resources and their
// compensating actions, and rolls them back in reverse creation order
// when a provisioning run fails.
//
// Registration is coupled to the moment of creation: a step calls
// Tracker.Record immediately after the external platform confirms the
// resource exists, so the ledger never trails what actually got created.
package resource

import (
	"context"
	"time"

	"github.com/provisio/provisio/id"
)

// Kind classifies a tracked resource. It is used only for reporting and
// for resolving compensators on resume, never for control flow.
type Kind string

// The closed set of resource kinds a provisioning pipeline creates.
const (
	KindCloudProject        Kind = "cloud-project"
	KindCredentialDocument  Kind = "credential-document"
	KindFilesystemDirectory Kind = "filesystem-directory"
	KindDatabaseCollection  Kind = "database-collection"
)

// RollbackFunc is a compensating action that undoes one created resource.
type RollbackFunc func(ctx context.Context) error

// Entry is one tracked resource awaiting commit or rollback.
// Entries are appended in creation order and never mutated.
type Entry struct {
	ID        id.ResourceID
	Kind      Kind
	Identity  string
	CreatedAt time.Time

	rollback RollbackFunc
}

// Record is the serializable projection of an Entry, persisted inside
// checkpoints as the durable ledger. Rollback actions are closures and
// cannot be serialized; a Resolver rebuilds them on resume.
type Record struct {
	Kind      Kind      `json:"kind" msgpack:"kind"`
	Identity  string    `json:"identity" msgpack:"identity"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

// Resolver rebuilds the compensating action for a resource restored from
// a durable ledger record. Returning nil means the resource cannot be
// compensated automatically and will be reported as orphaned.
type Resolver func(kind Kind, identity string) RollbackFunc
