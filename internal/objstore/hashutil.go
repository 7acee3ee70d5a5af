package objstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
	"github.com/multiformats/go-varint"
)

// computeCommitHash derives a commit identity from its timestamp and message only.
// Two commits with the same message and timestamp share a hash.
func computeCommitHash(message string, ts time.Time) string {
	payload := strings.Join([]string{
		ts.Format(time.RFC3339Nano),
		message,
	}, "\n")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// computeContentID returns the base32 CIDv1 (raw, SHA2-256) of the canonical
// encoding of objects: names in sorted order, each name and value prefixed
// with its uvarint length.
func computeContentID(objects map[string]string) (string, error) {
	var buf bytes.Buffer
	for _, name := range slices.Sorted(maps.Keys(objects)) {
		value := objects[name]
		buf.Write(varint.ToUvarint(uint64(len(name))))
		buf.WriteString(name)
		buf.Write(varint.ToUvarint(uint64(len(value))))
		buf.WriteString(value)
	}
	mh, err := multihash.Sum(buf.Bytes(), multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("multihash: %w", err)
	}
	c := gocid.NewCidV1(gocid.Raw, mh)
	return multibase.Encode(multibase.Base32, c.Bytes())
}
