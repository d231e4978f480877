// Package simhash computes 64-bit SimHash fingerprints of review text.
//
// The crawler stores one fingerprint per processed card so it can tell a
// "load more" that appended cards from one that re-rendered the list.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strconv"
	"strings"
	"unicode"
)

// Of fingerprints several fields as one document. Tokens are lower-cased
// runs of letters and digits in any script, tagged with their field position
// so moving a word between fields changes the result. Each token is hashed
// with FNV-64a and accumulated into a bit vector.
func Of(fields ...string) uint64 {
	var words []string
	for i, f := range fields {
		prefix := strconv.Itoa(i) + ":"
		for _, w := range tokens(f) {
			words = append(words, prefix+w)
		}
	}
	return fingerprint(words)
}

func fingerprint(words []string) uint64 {
	if len(words) == 0 {
		return 0
	}

	var vector [64]int
	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance returns the Hamming distance between two SimHash fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar returns true if the Hamming distance between two fingerprints
// is less than or equal to the threshold.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
