package util

import (
	"crypto/rand"
	"io"
)

// NewCode returns a session code of n decimal digits. Codes are short enough
// to type on a phone, so uniqueness is enforced by the caller, not here.
func NewCode(n int) string {
	return newCode(n, rand.Reader)
}

func newCode(n int, src io.Reader) string {
	code := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(code) < n {
		_, _ = io.ReadFull(src, buf)
		for _, b := range buf {
			// Bytes 250..255 would make digits 0..5 more likely; redraw.
			if b >= 250 {
				continue
			}
			code = append(code, '0'+b%10)
			if len(code) == n {
				break
			}
		}
	}
	return string(code)
}
