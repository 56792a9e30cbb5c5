// Package checkpoint defines the durable record of workflow progress and
// the store interface that persists it.
//
// One checkpoint exists per workflow identity. It is created after the
// first successful step, replaced wholesale after every subsequent step,
// and deleted when the workflow completes. A retained checkpoint is what
// makes an interrupted provisioning run resumable.
package checkpoint

import (
	"time"

	"github.com/provisio/provisio/resource"
)

// Checkpoint is the persisted progress record for one workflow identity.
//
// Completed grows monotonically within a run and lists step names in
// execution order. State is the full accumulated configuration needed to
// resume, so resumption never re-derives earlier outputs. Resources is
// the durable ledger snapshot taken at save time; it lets a resumed run
// account for resources created before a crash.
type Checkpoint struct {
	WorkflowID string            `json:"workflow_id" msgpack:"workflow_id"`
	LastStep   string            `json:"last_step" msgpack:"last_step"`
	Completed  []string          `json:"completed_steps" msgpack:"completed_steps"`
	State      State             `json:"state" msgpack:"state"`
	Resources  []resource.Record `json:"resources,omitempty" msgpack:"resources"`
	SavedAt    time.Time         `json:"saved_at" msgpack:"saved_at"`
}

// Clone returns a deep-enough copy: slices are copied, State is cloned
// one level down. Stores clone on save and load so callers can mutate
// their copy without racing the store.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}

	cp := *c
	cp.Completed = append([]string(nil), c.Completed...)
	cp.Resources = append([]resource.Record(nil), c.Resources...)
	cp.State = c.State.Clone()
	return &cp
}

// HasStep reports whether the given step name is in the completed set.
func (c *Checkpoint) HasStep(name string) bool {
	for _, s := range c.Completed {
		if s == name {
			return true
		}
	}
	return false
}
