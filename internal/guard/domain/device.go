package domain

import (
	"crypto/sha1"
	"fmt"

	"github.com/google/uuid"
)

// DeviceIDFor derives the "android:"-prefixed device identifier Steam's
// mobile endpoints expect. It is a UUID-shaped token cut from the SHA-1 of
// the steam id, so re-importing an account that never recorded its device id
// always lands on the same value.
func DeviceIDFor(steamID string) string {
	sum := sha1.Sum([]byte(steamID))
	hex := fmt.Sprintf("%x", sum)
	return fmt.Sprintf("android:%s-%s-%s-%s-%s",
		hex[0:8], hex[8:12], hex[12:16], hex[16:20], hex[20:32])
}

// RandomDeviceID returns a fresh device identifier for accounts that do not
// have a steam id yet, such as mid-link.
func RandomDeviceID() string {
	return "android:" + uuid.NewString()
}
