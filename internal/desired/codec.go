package desired

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"modelswap/pkg/types"
)

// Codec serializes desired-state records.
type Codec interface {
	Name() string
	Marshal(types.DesiredState) ([]byte, error)
	Unmarshal([]byte) (types.DesiredState, error)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(ds types.DesiredState) ([]byte, error) { return json.Marshal(ds) }

func (jsonCodec) Unmarshal(b []byte) (types.DesiredState, error) {
	var ds types.DesiredState
	err := json.Unmarshal(b, &ds)
	return ds, err
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Marshal(ds types.DesiredState) ([]byte, error) { return msgpack.Marshal(ds) }

func (msgpackCodec) Unmarshal(b []byte) (types.DesiredState, error) {
	var ds types.DesiredState
	err := msgpack.Unmarshal(b, &ds)
	return ds, err
}

// JSON and Msgpack are the available codecs.
var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// CodecByName resolves a codec; empty selects JSON.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
