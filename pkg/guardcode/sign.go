package guardcode

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"time"
)

// Confirmation-API operation tags. Each operation class signs with its own
// tag value; these are fixed by the platform, not chosen here.
const (
	TagList    = "conf"    // list pending confirmations
	TagDetails = "details" // fetch a single confirmation's detail page
	TagAccept  = "allow"   // accept a confirmation
	TagDeny    = "cancel"  // deny a confirmation
)

// ConfirmationHash signs a confirmation-API request: an HMAC-SHA1 over the
// 8-byte big-endian unix timestamp followed by the UTF-8 bytes of tag,
// keyed by the account's identity secret. The result is standard-base64
// encoded, ready to be sent as the "k" query parameter.
//
// Signatures are tied to the timestamp sent alongside them and must be
// computed fresh for every call.
func ConfirmationHash(identitySecret []byte, tag string, at time.Time) string {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(at.Unix()))

	mac := hmac.New(sha1.New, identitySecret)
	mac.Write(ts[:])
	mac.Write([]byte(tag))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// TagFor returns the signing tag for a confirmation action.
func TagFor(accept bool) string {
	if accept {
		return TagAccept
	}
	return TagDeny
}
