package generator

import (
	"math/rand"
	"strings"
)

var loremWords = []string{
	"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing",
	"elit", "sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore",
	"et", "dolore", "magna", "aliqua", "enim", "ad", "minim", "veniam",
	"quis", "nostrud", "exercitation", "ullamco", "laboris", "nisi",
	"aliquip", "ex", "ea", "commodo", "consequat", "duis", "aute", "irure",
	"in", "reprehenderit", "voluptate", "velit", "esse", "cillum", "fugiat",
	"nulla", "pariatur", "excepteur", "sint", "occaecat", "cupidatat",
	"non", "proident", "sunt", "culpa", "qui", "officia", "deserunt",
	"mollit", "anim", "id", "est", "laborum",
}

// loremText produces a text of roughly the requested number of tokens.
// One word approximates one token, which keeps the reported usage and the
// produced content consistent enough for load testing.
func loremText(rnd *rand.Rand, tokenCount int) string {
	if tokenCount <= 0 {
		return ""
	}

	words := make([]string, 0, tokenCount)
	for i := 0; i < tokenCount; i++ {
		words = append(words, loremWords[rnd.Intn(len(loremWords))])
	}

	sentence := strings.Join(words, " ")

	return strings.ToUpper(sentence[:1]) + sentence[1:] + "."
}
