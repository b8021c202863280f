// Package guardcode derives Steam Guard one-time codes and signs
// mobile-confirmation requests. Everything in this package is a pure
// function of its inputs; clock correction is the caller's concern.
package guardcode

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"time"
)

// Period is the length of one code window in seconds.
const Period = 30

// CodeLength is the number of symbols in a Steam Guard code.
const CodeLength = 5

// alphabet is Steam's published code alphabet. The exact ordering is a
// compatibility contract with the platform; do not reorder.
const alphabet = "23456789BCDFGHJKMNPQRTVWXY"

// Code returns the 5-symbol Steam Guard code for the given shared secret
// at the given instant. The instant must already include any clock-offset
// correction.
func Code(sharedSecret []byte, at time.Time) string {
	return codeForCounter(sharedSecret, uint64(at.Unix())/Period)
}

func codeForCounter(sharedSecret []byte, counter uint64) string {
	var step [8]byte
	binary.BigEndian.PutUint64(step[:], counter)

	mac := hmac.New(sha1.New, sharedSecret)
	mac.Write(step[:])
	sum := mac.Sum(nil)

	// Dynamic truncation: the low nibble of the last byte selects a
	// 4-byte window, interpreted as a big-endian 31-bit integer.
	offset := sum[len(sum)-1] & 0xF
	v := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7FFFFFFF

	var out [CodeLength]byte
	for i := range out {
		out[i] = alphabet[v%uint32(len(alphabet))]
		v /= uint32(len(alphabet))
	}
	return string(out[:])
}

// SecondsRemaining reports how many seconds of the current code window are
// left at the given instant. It is always in the range [1, Period].
func SecondsRemaining(at time.Time) int {
	return Period - int(at.Unix()%Period)
}

// NextWindow returns the instant at which the code after the one valid at
// the given instant becomes current.
func NextWindow(at time.Time) time.Time {
	return at.Add(time.Duration(SecondsRemaining(at)) * time.Second).Truncate(time.Second)
}
