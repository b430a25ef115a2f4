package utils

import (
	"os"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// HashContent returns the content address of data: a CIDv1 (raw codec)
// over its SHA2-256 multihash. Empty input has no hash.
func HashContent(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return ""
	}
	return cid.NewCidV1(cid.Raw, mh).String()
}

// ValidHash reports whether s parses as a content hash produced by HashContent
func ValidHash(s string) bool {
	c, err := cid.Decode(s)
	if err != nil {
		return false
	}
	return c.Prefix().MhType == multihash.SHA2_256
}

// GetHostname returns the hostname or "unknown"
func GetHostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
