package errors

import (
	"encoding/json"
	"fmt"
)

// ShieldedReqErrData carries the pool, failure kind and spend index of an unsatisfied shielded requirement.
type ShieldedReqErrData struct {
	Pool  string `json:"pool"`
	Kind  string `json:"kind"`
	Index int    `json:"index"`
}

func (e *ShieldedReqErrData) Error() string {
	return fmt.Sprintf("%s %s at index %d", e.Pool, e.Kind, e.Index)
}

func (e *ShieldedReqErrData) GetData(key string) interface{} {
	switch key {
	case "pool":
		return e.Pool
	case "kind":
		return e.Kind
	case "index":
		return e.Index
	}

	return nil
}

func (e *ShieldedReqErrData) SetData(key string, value interface{}) {
	switch key {
	case "pool":
		e.Pool, _ = value.(string)
	case "kind":
		e.Kind, _ = value.(string)
	case "index":
		e.Index, _ = value.(int)
	}
}

func (e *ShieldedReqErrData) EncodeErrorData() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte{}
	}

	return data
}

// NewShieldedReqError builds the rejection error for a transaction that spends an already revealed
// nullifier or references an unknown anchor.
func NewShieldedReqError(code ERR, pool, kind string, index int) *Error {
	data := &ShieldedReqErrData{Pool: pool, Kind: kind, Index: index}

	return New(code, "shielded requirement not met: %s", data.Error()).WithData(data)
}
