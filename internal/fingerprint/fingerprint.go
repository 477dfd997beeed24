// Package fingerprint summarizes a diff result as a Merkle root, so two
// runs can be compared without keeping the first result around.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
	mt "github.com/txaty/go-merkletree"

	"ydiff/internal/diffop"
	"ydiff/internal/dirdiff"
	"ydiff/internal/reconcile"
)

// emptyMarker is hashed when there are no leaves.
var emptyMarker = []byte("ydiff-empty")

// XXHashFunc is the go-merkletree hash function: xxhash64, big-endian.
func XXHashFunc(data []byte) ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, xxhash.Sum64(data))
	return buf, nil
}

type leaf []byte

func (l leaf) Serialize() ([]byte, error) {
	return l, nil
}

// Root returns the Merkle root over leaves, in order. The tree needs at
// least two blocks, so zero or one leaf is hashed directly.
func Root(leaves [][]byte) ([]byte, error) {
	switch len(leaves) {
	case 0:
		return XXHashFunc(emptyMarker)
	case 1:
		return XXHashFunc(leaves[0])
	}

	blocks := make([]mt.DataBlock, len(leaves))
	for i, l := range leaves {
		blocks[i] = leaf(l)
	}

	tree, err := mt.New(&mt.Config{
		HashFunc: XXHashFunc,
		Mode:     mt.ModeTreeBuild,
	}, blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to build merkle tree: %w", err)
	}
	return tree.Root, nil
}

func rootHex(leaves [][]byte) (string, error) {
	root, err := Root(leaves)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(root), nil
}

// ForResult fingerprints a reconciled file pair. Each row contributes one
// leaf holding both sides' kind, line number and content digest.
func ForResult(res *reconcile.Result) (string, error) {
	leaves := make([][]byte, 0, res.Len())
	for i := 0; i < res.Len(); i++ {
		var l []byte
		for _, side := range []diffop.Side{diffop.Left, diffop.Right} {
			line := res.Line(side, i)
			data, err := res.Text(side, i)
			if err != nil {
				return "", fmt.Errorf("failed to read row %d: %w", i, err)
			}
			l = fmt.Appendf(l, "%d|%d|%016x|", line.Kind, line.Number, xxhash.Sum64(data))
		}
		leaves = append(leaves, l)
	}
	return rootHex(leaves)
}

// ForEntries fingerprints a directory comparison.
func ForEntries(entries []dirdiff.Entry) (string, error) {
	leaves := make([][]byte, len(entries))
	for i, e := range entries {
		leaves[i] = fmt.Appendf(nil, "%d|%s|%s", e.Kind, e.Left, e.Right)
	}
	return rootHex(leaves)
}
