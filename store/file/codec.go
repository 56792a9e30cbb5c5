package file

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/provisio/provisio/checkpoint"
)

// Codec defines the serialization contract for checkpoint files.
type Codec interface {
	// Encode serializes a checkpoint to bytes.
	Encode(cp *checkpoint.Checkpoint) ([]byte, error)

	// Decode deserializes bytes into a checkpoint.
	Decode(data []byte) (*checkpoint.Checkpoint, error)

	// Name returns the codec identifier (e.g., "json", "msgpack").
	// It doubles as the on-disk file extension.
	Name() string
}

// CodecName constants for format selection.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to JSON.
func GetCodec(name string) Codec {
	switch name {
	case CodecNameMsgpack:
		return &MsgpackCodec{}
	case CodecNameJSON, "":
		return &JSONCodec{}
	default:
		return &JSONCodec{}
	}
}

// JSONCodec encodes checkpoints as indented JSON, keeping the on-disk
// files inspectable by operators.
type JSONCodec struct{}

func (c *JSONCodec) Encode(cp *checkpoint.Checkpoint) ([]byte, error) {
	return json.MarshalIndent(cp, "", "  ")
}

func (c *JSONCodec) Decode(data []byte) (*checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (c *JSONCodec) Name() string { return CodecNameJSON }

// MsgpackCodec encodes checkpoints as MessagePack, for workflows whose
// state snapshots are large enough for encoding size to matter.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(cp *checkpoint.Checkpoint) ([]byte, error) {
	return msgpack.Marshal(cp)
}

func (c *MsgpackCodec) Decode(data []byte) (*checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	if err := msgpack.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (c *MsgpackCodec) Name() string { return CodecNameMsgpack }
