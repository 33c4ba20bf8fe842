package model

import (
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
)

// writer appends the canonical little-endian encoding used for hashing, sizing and persistence.
type writer struct {
	b []byte
}

func (w *writer) varInt(v uint64) {
	w.b = append(w.b, bt.VarInt(v).Bytes()...)
}

func (w *writer) uint32(v uint32) {
	w.b = binary.LittleEndian.AppendUint32(w.b, v)
}

func (w *writer) uint64(v uint64) {
	w.b = binary.LittleEndian.AppendUint64(w.b, v)
}

func (w *writer) amount(v Amount) {
	w.uint64(uint64(v))
}

func (w *writer) bool(v bool) {
	if v {
		w.b = append(w.b, 1)
		return
	}

	w.b = append(w.b, 0)
}

func (w *writer) hash(h chainhash.Hash) {
	w.b = append(w.b, h[:]...)
}

func (w *writer) bytes(b []byte) {
	w.varInt(uint64(len(b)))
	w.b = append(w.b, b...)
}

// reader is the counterpart of writer. The first failure sticks and every later read is a no-op.
type reader struct {
	b   []byte
	pos int
	err error
}

func newReader(b []byte) *reader {
	return &reader{b: b}
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}

	if n < 0 || len(r.b)-r.pos < n {
		r.err = errors.NewSerializationError("unexpected end of data at offset %d, need %d bytes", r.pos, n)
		return false
	}

	return true
}

func (r *reader) varInt() uint64 {
	if !r.need(1) {
		return 0
	}

	size := 1

	switch r.b[r.pos] {
	case 0xfd:
		size = 3
	case 0xfe:
		size = 5
	case 0xff:
		size = 9
	}

	if !r.need(size) {
		return 0
	}

	v, n := bt.NewVarIntFromBytes(r.b[r.pos : r.pos+size])
	r.pos += n

	return uint64(v)
}

func (r *reader) uint32() uint32 {
	if !r.need(4) {
		return 0
	}

	v := binary.LittleEndian.Uint32(r.b[r.pos:])
	r.pos += 4

	return v
}

func (r *reader) uint64() uint64 {
	if !r.need(8) {
		return 0
	}

	v := binary.LittleEndian.Uint64(r.b[r.pos:])
	r.pos += 8

	return v
}

func (r *reader) amount() Amount {
	return Amount(r.uint64())
}

func (r *reader) bool() bool {
	if !r.need(1) {
		return false
	}

	v := r.b[r.pos] != 0
	r.pos++

	return v
}

func (r *reader) hash() chainhash.Hash {
	var h chainhash.Hash

	if !r.need(chainhash.HashSize) {
		return h
	}

	copy(h[:], r.b[r.pos:r.pos+chainhash.HashSize])
	r.pos += chainhash.HashSize

	return h
}

func (r *reader) bytes() []byte {
	n := r.count(1)
	if !r.need(n) {
		return nil
	}

	b := make([]byte, n)
	copy(b, r.b[r.pos:r.pos+n])
	r.pos += n

	return b
}

// count reads a length prefix and rejects values that cannot possibly fit in the remaining data.
func (r *reader) count(minElemSize int) int {
	n := r.varInt()
	if r.err != nil {
		return 0
	}

	if minElemSize > 0 && n > uint64((len(r.b)-r.pos)/minElemSize) {
		r.err = errors.NewSerializationError("length prefix %d exceeds remaining data at offset %d", n, r.pos)
		return 0
	}

	return int(n)
}

func (r *reader) done() error {
	if r.err != nil {
		return r.err
	}

	if r.pos != len(r.b) {
		return errors.NewSerializationError("%d trailing bytes", len(r.b)-r.pos)
	}

	return nil
}
