package embed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocab() map[string]int64 {
	return map[string]int64{
		"[PAD]":  0,
		"[UNK]":  1,
		"[CLS]":  2,
		"[SEP]":  3,
		"chest":  4,
		"pain":   5,
		"head":   6,
		"##ache": 7,
		"severe": 8,
		"my":     9,
		"hurts":  10,
	}
}

func newTestTokenizer(t *testing.T, seqLen int) *Tokenizer {
	tok, err := newTokenizerFromVocab(testVocab(), seqLen)
	require.NoError(t, err)
	return tok
}

func TestTokenizerEncodeKnownWords(t *testing.T) {
	tok := newTestTokenizer(t, 8)

	enc := tok.Encode("chest pain")

	assert.Equal(t, []int64{2, 4, 5, 3, 0, 0, 0, 0}, enc.InputIDs)
	assert.Equal(t, []int64{1, 1, 1, 1, 0, 0, 0, 0}, enc.AttentionMask)
	assert.Equal(t, make([]int64, 8), enc.TokenTypeIDs)
}

func TestTokenizerEncodeSubwords(t *testing.T) {
	tok := newTestTokenizer(t, 8)

	enc := tok.Encode("headache")

	// head + ##ache
	assert.Equal(t, []int64{2, 6, 7, 3, 0, 0, 0, 0}, enc.InputIDs)
}

func TestTokenizerUnknownWordCollapses(t *testing.T) {
	tok := newTestTokenizer(t, 8)

	enc := tok.Encode("xyzzy pain")

	assert.Equal(t, []int64{2, tok.UnknownID(), 5, 3, 0, 0, 0, 0}, enc.InputIDs)
}

func TestTokenizerNormalization(t *testing.T) {
	tok := newTestTokenizer(t, 8)

	// Case folding and punctuation stripping must not change the tokens.
	plain := tok.Encode("chest pain")
	noisy := tok.Encode("  CHEST, pain!!  ")

	assert.Equal(t, plain.InputIDs, noisy.InputIDs)
}

func TestTokenizerTruncation(t *testing.T) {
	tok := newTestTokenizer(t, 5)

	enc := tok.Encode("chest pain severe my hurts head")

	require.Len(t, enc.InputIDs, 5)
	assert.Equal(t, int64(2), enc.InputIDs[0])
	assert.Equal(t, int64(3), enc.InputIDs[4], "last position must be the end sentinel")
	for _, m := range enc.AttentionMask {
		assert.Equal(t, int64(1), m, "truncated sequences are fully attended")
	}
}

func TestTokenizerVocabFromNoSentinels(t *testing.T) {
	_, err := newTokenizerFromVocab(map[string]int64{"chest": 0}, 8)
	assert.Error(t, err)
}

func TestNewTokenizerFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.txt")
	content := "[PAD]\n[UNK]\n[CLS]\n[SEP]\nchest\npain\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	tok, err := NewTokenizer(path, 8)
	require.NoError(t, err)

	enc := tok.Encode("chest pain")
	assert.Equal(t, []int64{2, 4, 5, 3, 0, 0, 0, 0}, enc.InputIDs)
}
