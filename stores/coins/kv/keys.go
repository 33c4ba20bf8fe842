package kv

import (
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/model"
)

// Every record lives under a one byte prefix so that the record kinds never collide.
const (
	prefixCoins         = 'c'
	prefixAnchor        = 'a'
	prefixNullifier     = 'n'
	prefixBestBlock     = 'B'
	prefixBestAnchor    = 'b'
	prefixHistoryNode   = 'h'
	prefixHistoryLength = 'l'
	prefixHistoryRoot   = 'r'
)

func coinsKey(txid chainhash.Hash) []byte {
	return append([]byte{prefixCoins}, txid[:]...)
}

func anchorKey(pool model.ShieldedType, root chainhash.Hash) []byte {
	return append([]byte{prefixAnchor, byte(pool)}, root[:]...)
}

func nullifierKey(pool model.ShieldedType, nf chainhash.Hash) []byte {
	return append([]byte{prefixNullifier, byte(pool)}, nf[:]...)
}

func bestBlockKey() []byte {
	return []byte{prefixBestBlock}
}

func bestAnchorKey(pool model.ShieldedType) []byte {
	return []byte{prefixBestAnchor, byte(pool)}
}

// history nodes are keyed big endian so that an epoch's nodes sort by index
func historyNodeKey(epoch model.Epoch, index model.HistoryIndex) []byte {
	key := make([]byte, 0, 13)
	key = append(key, prefixHistoryNode)
	key = binary.BigEndian.AppendUint32(key, uint32(epoch))

	return binary.BigEndian.AppendUint64(key, uint64(index))
}

func historyLengthKey(epoch model.Epoch) []byte {
	return binary.BigEndian.AppendUint32([]byte{prefixHistoryLength}, uint32(epoch))
}

func historyRootKey(epoch model.Epoch) []byte {
	return binary.BigEndian.AppendUint32([]byte{prefixHistoryRoot}, uint32(epoch))
}
