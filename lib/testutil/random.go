package testutil

import "math/rand"

// RandomName generates a random lowercase product-name-like string
// over the catalog alphabet, given the pseudo random source.
func RandomName(rndm *rand.Rand, length int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789 "
	str := make([]byte, length)
	for i := range str {
		str[i] = alphabet[rndm.Intn(len(alphabet))]
	}
	return string(str)
}
