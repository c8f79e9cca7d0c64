// Package gitcli provides read-only access to a repository's object store
// through the git plumbing commands. The git binary is the only backend that
// reports true on-disk object sizes (%(objectsize:disk)), so everything here
// shells out rather than linking a git library.
package gitcli

// Constants for object id operations.
const (
	// OIDSize is the size of a SHA-1 object id in bytes.
	OIDSize = 20
	// OIDHexSize is the size of a hex-encoded SHA-1 object id.
	OIDHexSize = 40
	// hexBase is the base offset for hexadecimal digits a-f.
	hexBase = 10
	// hexShift is the bit shift for the high nibble.
	hexShift = 4
)

// OID is a content-derived git object id (SHA-1). Equality and hashing are
// by value, which makes it usable as a map key for object sets.
type OID [OIDSize]byte

// ParseOID parses a hex-encoded object id.
// Returns false when the input is not a 40-character hex string.
func ParseOID(hexStr string) (OID, bool) {
	var id OID

	if len(hexStr) != OIDHexSize {
		return id, false
	}

	for i := range OIDSize {
		hi, okHi := hexNibble(hexStr[i*2])
		lo, okLo := hexNibble(hexStr[i*2+1])

		if !okHi || !okLo {
			return OID{}, false
		}

		id[i] = hi<<hexShift | lo
	}

	return id, true
}

// hexNibble converts a hex character to its 4-bit value.
func hexNibble(char byte) (byte, bool) {
	switch {
	case char >= '0' && char <= '9':
		return char - '0', true
	case char >= 'a' && char <= 'f':
		return char - 'a' + hexBase, true
	case char >= 'A' && char <= 'F':
		return char - 'A' + hexBase, true
	default:
		return 0, false
	}
}

// String returns the hex representation of the object id.
func (id OID) String() string {
	const hexChars = "0123456789abcdef"

	buf := make([]byte, OIDHexSize)

	for i, byteVal := range id {
		buf[i*2] = hexChars[byteVal>>hexShift]
		buf[i*2+1] = hexChars[byteVal&0x0f]
	}

	return string(buf)
}

// IsZero returns true if the object id is all zeros.
func (id OID) IsZero() bool {
	for _, b := range id {
		if b != 0 {
			return false
		}
	}

	return true
}
