// Package lineid derives stable identities for listing lines and matches
// buyer submissions back to the lines they were rendered from.
package lineid

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/cimillas/linevault/internal/redact"
)

// Identity is the hex-encoded 32-byte digest of a line. It is the ledger's
// uniqueness key for holds.
type Identity string

// identityDomainKey separates line identities from any other BLAKE3 keyed
// hash. Changing it invalidates every stored identity.
var identityDomainKey = [32]byte{
	'l', 'i', 'n', 'e', 'v', 'a', 'u', 'l', 't', '.', 'l', 'i', 'n', 'e', '.',
	'i', 'd', 'e', 'n', 't', 'i', 't', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Compute returns the identity of the line at position in listingID.
// Each field is length-prefixed so no two distinct triples encode to the
// same byte string.
func Compute(listingID string, position int, raw string) Identity {
	hasher, err := blake3.NewKeyed(identityDomainKey[:])
	if err != nil {
		panic("lineid: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	var buf [binary.MaxVarintLen64]byte
	writeField := func(b []byte) {
		n := binary.PutUvarint(buf[:], uint64(len(b)))
		_, _ = hasher.Write(buf[:n])
		_, _ = hasher.Write(b)
	}

	writeField([]byte(listingID))
	n := binary.PutVarint(buf[:], int64(position))
	_, _ = hasher.Write(buf[:n])
	writeField([]byte(raw))

	return Identity(hex.EncodeToString(hasher.Sum(nil)))
}

// Candidate is a submitted line matched to its position in the listing.
type Candidate struct {
	Position int
	Raw      string
	Safe     string
}

// Match finds, for each submitted line, the first projected line whose safe
// text equals the trimmed submission and which no earlier submission in the
// same call already matched. Submissions that match nothing are dropped.
// Results follow submission order.
func Match(content string, submitted []string) []Candidate {
	projected := redact.Project(content)

	byText := make(map[string][]int, len(projected))
	for i, p := range projected {
		key := strings.TrimSpace(p.Safe)
		byText[key] = append(byText[key], i)
	}

	var out []Candidate
	for _, s := range submitted {
		key := strings.TrimSpace(s)
		if key == "" {
			continue
		}
		idxs := byText[key]
		if len(idxs) == 0 {
			continue
		}
		p := projected[idxs[0]]
		byText[key] = idxs[1:]
		out = append(out, Candidate{Position: p.Position, Raw: p.Raw, Safe: p.Safe})
	}
	return out
}
