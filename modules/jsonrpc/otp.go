package jsonrpc

import (
	"crypto/hmac"
	"crypto/sha1" // #nosec G505
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// TOTP derives the 6-digit one-time code the 2017-era servlet expects:
// RFC 6238 with HMAC-SHA1 and 30 second steps over the app shared secret.
func TOTP(secret string, now time.Time) string {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
	if err != nil {
		// some deployments hand out raw byte secrets
		key = []byte(secret)
	}

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], uint64(now.Unix()/30))
	mac := hmac.New(sha1.New, key)
	mac.Write(counter[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%06d", code%1000000)
}
