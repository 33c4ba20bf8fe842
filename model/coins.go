package model

import (
	"bytes"
	"fmt"
	"unsafe"
)

// Coins holds the still-unspent transparent outputs created by one transaction. Spent outputs are
// tombstoned in place so that output indexes stay stable; trailing tombstones are trimmed.
type Coins struct {
	Coinbase bool
	Outputs  []*TxOut
	Height   uint32
	Version  int32
}

func NewCoinsFromTx(tx *Tx, height uint32) *Coins {
	c := &Coins{
		Coinbase: tx.IsCoinbase(),
		Outputs:  make([]*TxOut, len(tx.Outputs)),
		Height:   height,
		Version:  tx.Version,
	}

	for i, out := range tx.Outputs {
		c.Outputs[i] = out.Clone()
	}

	c.Cleanup()

	return c
}

// Cleanup trims trailing spent outputs and releases the slice once nothing is left.
func (c *Coins) Cleanup() {
	for len(c.Outputs) > 0 && c.Outputs[len(c.Outputs)-1].IsNull() {
		c.Outputs = c.Outputs[:len(c.Outputs)-1]
	}

	if len(c.Outputs) == 0 {
		c.Outputs = nil
	}
}

// Spend tombstones the output at index. It returns false when the output does not exist or was
// already spent.
func (c *Coins) Spend(index uint32) bool {
	if !c.IsAvailable(index) {
		return false
	}

	c.Outputs[index].SetNull()
	c.Cleanup()

	return true
}

func (c *Coins) IsAvailable(index uint32) bool {
	return int(index) < len(c.Outputs) && !c.Outputs[index].IsNull()
}

// IsPruned reports whether every output has been spent. A pruned record is equivalent to absence.
func (c *Coins) IsPruned() bool {
	for _, out := range c.Outputs {
		if !out.IsNull() {
			return false
		}
	}

	return true
}

func (c *Coins) Clear() {
	c.Coinbase = false
	c.Outputs = nil
	c.Height = 0
	c.Version = 0
}

// Equal compares two records. Two pruned records are equal whatever their metadata.
func (c *Coins) Equal(other *Coins) bool {
	if c.IsPruned() && other.IsPruned() {
		return true
	}

	if c.Coinbase != other.Coinbase || c.Height != other.Height || c.Version != other.Version ||
		len(c.Outputs) != len(other.Outputs) {
		return false
	}

	for i, out := range c.Outputs {
		o := other.Outputs[i]
		if out.Value != o.Value || !bytes.Equal(out.Script, o.Script) {
			return false
		}
	}

	return true
}

func (c *Coins) Clone() *Coins {
	clone := &Coins{
		Coinbase: c.Coinbase,
		Height:   c.Height,
		Version:  c.Version,
	}

	if c.Outputs != nil {
		clone.Outputs = make([]*TxOut, len(c.Outputs))

		for i, out := range c.Outputs {
			clone.Outputs[i] = out.Clone()
		}
	}

	return clone
}

var txOutSize = int(unsafe.Sizeof(TxOut{}))

// DynamicMemoryUsage approximates the heap bytes held by the record beyond the struct itself.
func (c *Coins) DynamicMemoryUsage() int {
	usage := cap(c.Outputs) * int(unsafe.Sizeof(uintptr(0)))

	for _, out := range c.Outputs {
		usage += txOutSize + cap(out.Script)
	}

	return usage
}

// GetValueOut sums the unspent outputs.
func (c *Coins) GetValueOut() Amount {
	var total Amount

	for _, out := range c.Outputs {
		if !out.IsNull() {
			total += out.Value
		}
	}

	return total
}

func (c *Coins) String() string {
	unspent := 0

	for _, out := range c.Outputs {
		if !out.IsNull() {
			unspent++
		}
	}

	return fmt.Sprintf("Coins(height=%d, coinbase=%t, version=%d, outputs=%d, unspent=%d)",
		c.Height, c.Coinbase, c.Version, len(c.Outputs), unspent)
}

// Bytes returns the encoding used by the backing stores. Callers never persist pruned records.
func (c *Coins) Bytes() []byte {
	w := &writer{b: make([]byte, 0, 16+len(c.Outputs)*32)}

	w.uint32(uint32(c.Version))
	w.uint32(c.Height)
	w.bool(c.Coinbase)
	w.varInt(uint64(len(c.Outputs)))

	for _, out := range c.Outputs {
		w.amount(out.Value)
		w.bytes(out.Script)
	}

	return w.b
}

func NewCoinsFromBytes(b []byte) (*Coins, error) {
	r := newReader(b)
	c := &Coins{}

	c.Version = int32(r.uint32())
	c.Height = r.uint32()
	c.Coinbase = r.bool()

	n := r.count(9)
	if n > 0 {
		c.Outputs = make([]*TxOut, 0, n)
	}

	for i := 0; i < n && r.err == nil; i++ {
		out := &TxOut{Value: r.amount(), Script: r.bytes()}
		if out.IsNull() {
			out.Script = nil
		}

		c.Outputs = append(c.Outputs, out)
	}

	if err := r.done(); err != nil {
		return nil, err
	}

	return c, nil
}
