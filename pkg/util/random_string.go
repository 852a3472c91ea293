package utils

import (
	"fmt"
	"math/rand"
	"sync"
)

// https://stackoverflow.com/questions/22892120/how-to-generate-a-random-string-of-a-fixed-length-in-go

type RandomStringGenerator struct {
	mut sync.Mutex
	gen *rand.Rand
}

func CreateRandomstringGenerator(seed int64) *RandomStringGenerator {
	return &RandomStringGenerator{
		mut: sync.Mutex{},
		gen: rand.New(rand.NewSource(seed)),
	}
}

var letters = []rune("0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

const HexTokenLength = 8

// GetRandomString returns n characters drawn uniformly from [0-9a-zA-Z].
func (g *RandomStringGenerator) GetRandomString(n int) string {
	g.mut.Lock()
	defer g.mut.Unlock()

	b := make([]rune, n)
	for i := range b {
		b[i] = letters[g.gen.Intn(len(letters))]
	}
	return string(b)
}

// GetHexToken formats a uniformly random 32-bit value as 8 lowercase hex digits.
func (g *RandomStringGenerator) GetHexToken() string {
	g.mut.Lock()
	defer g.mut.Unlock()

	return fmt.Sprintf("%08x", g.gen.Uint32())
}

func IsHexToken(s string) bool {
	if len(s) != HexTokenLength {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
