package githash

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Hash is a raw git object identifier.
//
// It is the 20-byte binary form of a SHA-1 digest as git stores it in the
// index and object database. The zero value is the all-zero hash, which
// never addresses a real object.
type Hash [20]byte

// ParseHash converts the canonical 40-character hexadecimal form into its
// raw 20-byte representation.
//
// An error is returned when the input is not exactly 40 bytes long or cannot
// be decoded as hexadecimal.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != 40 {
		return h, fmt.Errorf("invalid hash length %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

// String returns the lowercase 40-character hexadecimal form of h.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// blobSum computes the content address git assigns to a blob with the given
// payload: the SHA-1 of "blob <decimal size>\x00" followed by the payload.
func blobSum(data []byte) Hash {
	h := sha1.New()
	h.Write([]byte("blob "))
	h.Write(strconv.AppendInt(nil, int64(len(data)), 10))
	h.Write([]byte{0})
	h.Write(data)
	var sum Hash
	copy(sum[:], h.Sum(nil))
	return sum
}
