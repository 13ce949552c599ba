package toc

import "strings"

// Regrace splits a compact WikiWord into space separated words. A space is
// placed before every uppercase letter and before the first digit of a
// digit run, so "Child1Page" becomes "Child 1 Page". Only ASCII boundaries
// are recognized; everything else is copied through.
func Regrace(name string) string {
	var b strings.Builder
	b.Grow(len(name) + len(name)/2)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if i > 0 && name[i-1] != ' ' {
			prev := name[i-1]
			if isUpper(c) || (isDigit(c) && !isDigit(prev)) {
				b.WriteByte(' ')
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
