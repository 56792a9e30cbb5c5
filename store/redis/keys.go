package redis

// Redis key naming conventions for provisio data.
// All keys are prefixed with "provisio:" to avoid collisions.

const keyPrefix = "provisio:"

// checkpointKey returns the Hash key for a checkpoint: provisio:checkpoint:{workflowID}
func checkpointKey(workflowID string) string {
	return keyPrefix + "checkpoint:" + workflowID
}

// checkpointIDsKey is the Set tracking all workflow identities with a
// checkpoint, for enumeration.
const checkpointIDsKey = keyPrefix + "checkpoint_ids"
