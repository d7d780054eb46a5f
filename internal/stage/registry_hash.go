package stage

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"
)

// Hash computes the registry identity.
//
// Determinism rules:
//   - Stages, roots and includes are hashed in declaration order (order is semantic).
//   - Extensions are treated as a set and thus sorted.
//   - All fields are length-prefixed to avoid ambiguity.
func (r Registry) Hash() RegistryHash {
	h := sha256.New()

	writeField(h, []byte(r.Name))
	writeField(h, []byte(strconv.Itoa(len(r.Stages))))
	for _, d := range r.Stages {
		writeField(h, []byte(d.Name))
		writeField(h, []byte(strconv.Itoa(d.Ordinal)))

		writeField(h, []byte(strconv.Itoa(len(d.Roots))))
		for _, root := range d.Roots {
			writeField(h, []byte(root.Dir))
			writeField(h, []byte(strconv.FormatBool(root.Recurse)))
		}

		exts := d.ExtensionSet().Sorted()
		writeField(h, []byte(strconv.Itoa(len(exts))))
		for _, e := range exts {
			writeField(h, []byte(e))
		}

		writeField(h, []byte(d.Artifact))

		writeField(h, []byte(strconv.Itoa(len(d.Includes))))
		for _, inc := range d.Includes {
			writeField(h, []byte(inc))
		}

		writeField(h, []byte(strconv.FormatBool(d.NeedsRevision)))
	}

	sum := h.Sum(nil)
	return RegistryHash(hex.EncodeToString(sum))
}

func writeField(h hash.Hash, data []byte) {
	length := uint64(len(data))
	lengthBytes := []byte{
		byte(length >> 56),
		byte(length >> 48),
		byte(length >> 40),
		byte(length >> 32),
		byte(length >> 24),
		byte(length >> 16),
		byte(length >> 8),
		byte(length),
	}
	h.Write(lengthBytes)
	h.Write(data)
}
