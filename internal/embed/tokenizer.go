// Package embed implements the fast tier of the classification cascade: a
// WordPiece tokenizer, an ONNX sentence encoder with masked mean pooling,
// and small classification heads for specialty and condition ranking.
package embed

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Sentinel and padding tokens. Token IDs come from the loaded vocabulary.
const (
	tokenCLS = "[CLS]"
	tokenSEP = "[SEP]"
	tokenPAD = "[PAD]"
	tokenUNK = "[UNK]"

	subwordPrefix = "##"

	// maxWordChars bounds greedy matching inside one word; longer words
	// degrade to the unknown token, matching the reference vocabulary.
	maxWordChars = 100
)

// Tokenizer converts free text into fixed-length token ID sequences using a
// WordPiece vocabulary: lowercase, punctuation stripped, whitespace split,
// then greedy longest-prefix subword matching with an unknown-token fallback.
type Tokenizer struct {
	vocab  map[string]int64
	seqLen int

	clsID int64
	sepID int64
	padID int64
	unkID int64
}

// Encoded is one tokenized sequence, right-padded to the fixed length.
type Encoded struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// NewTokenizer loads a newline-delimited vocabulary file where the line
// number is the token ID.
func NewTokenizer(vocabPath string, seqLen int) (*Tokenizer, error) {
	file, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer file.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(file)
	var id int64
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		if token != "" {
			vocab[token] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}

	return newTokenizerFromVocab(vocab, seqLen)
}

// newTokenizerFromVocab builds a tokenizer over an in-memory vocabulary.
func newTokenizerFromVocab(vocab map[string]int64, seqLen int) (*Tokenizer, error) {
	t := &Tokenizer{vocab: vocab, seqLen: seqLen}

	var ok bool
	if t.clsID, ok = vocab[tokenCLS]; !ok {
		return nil, fmt.Errorf("vocabulary missing %s", tokenCLS)
	}
	if t.sepID, ok = vocab[tokenSEP]; !ok {
		return nil, fmt.Errorf("vocabulary missing %s", tokenSEP)
	}
	if t.padID, ok = vocab[tokenPAD]; !ok {
		return nil, fmt.Errorf("vocabulary missing %s", tokenPAD)
	}
	if t.unkID, ok = vocab[tokenUNK]; !ok {
		return nil, fmt.Errorf("vocabulary missing %s", tokenUNK)
	}
	return t, nil
}

// Encode tokenizes text, wraps it in begin/end sentinels, and right-pads or
// truncates to the fixed sequence length.
func (t *Tokenizer) Encode(text string) Encoded {
	ids := []int64{t.clsID}

	for _, word := range t.splitWords(text) {
		ids = append(ids, t.wordPiece(word)...)
		// Reserve room for the trailing sentinel.
		if len(ids) >= t.seqLen-1 {
			ids = ids[:t.seqLen-1]
			break
		}
	}
	ids = append(ids, t.sepID)

	mask := make([]int64, t.seqLen)
	for i := range ids {
		mask[i] = 1
	}
	for len(ids) < t.seqLen {
		ids = append(ids, t.padID)
	}

	return Encoded{
		InputIDs:      ids,
		AttentionMask: mask,
		TokenTypeIDs:  make([]int64, t.seqLen),
	}
}

// UnknownID returns the unknown-token ID.
func (t *Tokenizer) UnknownID() int64 {
	return t.unkID
}

// splitWords lowercases, drops punctuation and splits on whitespace.
func (t *Tokenizer) splitWords(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			// punctuation separates words rather than vanishing mid-token
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// wordPiece greedily matches the longest vocabulary prefix, then continues
// on the remainder with the ## continuation form. A word with any unmatched
// span collapses to the unknown token.
func (t *Tokenizer) wordPiece(word string) []int64 {
	if len(word) > maxWordChars {
		return []int64{t.unkID}
	}

	var pieces []int64
	runes := []rune(word)
	start := 0
	for start < len(runes) {
		end := len(runes)
		var matched int64 = -1
		for end > start {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = subwordPrefix + candidate
			}
			if id, ok := t.vocab[candidate]; ok {
				matched = id
				break
			}
			end--
		}
		if matched < 0 {
			return []int64{t.unkID}
		}
		pieces = append(pieces, matched)
		start = end
	}
	return pieces
}
