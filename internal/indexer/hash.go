package indexer

import (
	"crypto/sha256"
	"encoding/hex"
)

// contentHash is the delta.HashCalculator used to fingerprint a file's raw
// content, both when recording it into fileHashes and when comparing a live
// file against that record (spec §4.6). filePath is accepted to satisfy
// delta.HashCalculator's signature but isn't mixed into the hash: only
// content identity matters for reuse.
func contentHash(_ string, content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
