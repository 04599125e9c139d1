package view

import (
	"slices"
	"unicode/utf16"
	"unicode/utf8"
)

// CompareStrings orders a and b by UTF-16 code unit, the order JavaScript's
// default Array.prototype.sort uses. It differs from byte order only when a
// supplementary-plane character meets a BMP character at or above U+E000.
func CompareStrings(a, b string) int {
	for a != "" && b != "" {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		a, b = a[na:], b[nb:]
		if ra == rb {
			continue
		}

		hiA, loA := codeUnits(ra)
		hiB, loB := codeUnits(rb)
		switch {
		case hiA < hiB:
			return -1
		case hiA > hiB:
			return 1
		case loA < loB:
			return -1
		case loA > loB:
			return 1
		}
	}

	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

// SortStrings sorts s in place with CompareStrings. Equal elements keep
// their relative order.
func SortStrings(s []string) {
	slices.SortStableFunc(s, CompareStrings)
}

// codeUnits returns the UTF-16 encoding of r. lo is zero for BMP runes.
func codeUnits(r rune) (hi, lo uint16) {
	if r < 0x10000 {
		return uint16(r), 0
	}
	r1, r2 := utf16.EncodeRune(r)
	return uint16(r1), uint16(r2)
}
