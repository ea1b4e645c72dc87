package utils

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// unambiguous alphabet (no 0/O, 1/I/L)
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateReferralCode builds a shareable code from the username plus a
// random suffix, e.g. "satoshi-X7K4QD". Uniqueness is enforced by the DB
// index; callers retry on conflict.
func GenerateReferralCode(username string) string {
	base := slug.Make(username)
	if len(base) > 12 {
		base = base[:12]
	}
	if base == "" {
		base = "user"
	}
	return fmt.Sprintf("%s-%s", base, randomCode(6))
}

func randomCode(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	var b strings.Builder
	for _, c := range buf {
		b.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
	}
	return strings.ToUpper(b.String())
}
