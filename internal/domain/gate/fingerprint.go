package gate

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint identifies a logical request by method, path and body.
// Headers are deliberately excluded: the same action retried by caller
// code carries the same fingerprint even if its credential header changed.
type Fingerprint uint64

// String returns the fingerprint as 16 hex digits.
func (f Fingerprint) String() string {
	s := strconv.FormatUint(uint64(f), 16)
	return strings.Repeat("0", 16-len(s)) + s
}

// FingerprintOf computes the fingerprint of call.
func FingerprintOf(call *Call) Fingerprint {
	h := xxhash.New()
	_, _ = h.WriteString(strings.ToUpper(call.Method))
	_, _ = h.Write([]byte{0}) // separator
	_, _ = h.WriteString(call.Path)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(call.Body)
	return Fingerprint(h.Sum64())
}

// sameRequest reports whether a and b are the same logical request. Used to
// guard merges against hash collisions.
func sameRequest(a, b *Call) bool {
	return strings.EqualFold(a.Method, b.Method) && a.Path == b.Path && string(a.Body) == string(b.Body)
}
