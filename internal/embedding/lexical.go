package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const DefaultLexicalDimensions = 512

// Lexical is an offline embedder: a hashed bag of words over lowercase
// tokens with stopwords removed. Dimension 0 is reserved for text without
// any content token, so no vector is all zeros.
type Lexical struct {
	dim          int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func NewLexical(dim int) *Lexical {
	if dim < 2 {
		dim = DefaultLexicalDimensions
	}
	return &Lexical{
		dim:          dim,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

func (l *Lexical) Name() string { return "lexical" }

func (l *Lexical) Dimension() int { return l.dim }

func (l *Lexical) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, l.dim)
	tokens := l.tokenize(text)
	if len(tokens) == 0 {
		vec[0] = 1
		return vec, nil
	}
	for _, tok := range tokens {
		vec[l.bucket(tok)]++
	}

	norm := 0.0
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (l *Lexical) bucket(token string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return 1 + int(h.Sum32()%uint32(l.dim-1))
}

func (l *Lexical) tokenize(text string) []string {
	raw := l.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := l.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "when", "where", "why", "do", "does", "did", "i", "me", "my", "you", "your", "tell",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
