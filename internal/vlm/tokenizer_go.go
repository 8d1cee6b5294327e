//go:build !rust_tokenizers

package vlm

import (
	"bytes"
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// TokenizerRuntime names the tokenizer implementation compiled in.
const TokenizerRuntime = "GO"

// Tokenizer wraps a sugarme tokenizer loaded from tokenizer.json bytes.
type Tokenizer struct {
	tk *tokenizer.Tokenizer
}

// NewTokenizer loads a tokenizer from the contents of a tokenizer.json file.
func NewTokenizer(data []byte) (*Tokenizer, error) {
	tk, err := pretrained.FromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Tokenizer{tk: tk}, nil
}

func (t *Tokenizer) Encode(text string) ([]int, error) {
	enc, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, err
	}
	return enc.Ids, nil
}

func (t *Tokenizer) Decode(ids []int, skipSpecialTokens bool) string {
	return t.tk.Decode(ids, skipSpecialTokens)
}

func (t *Tokenizer) TokenID(token string) (int, bool) {
	return t.tk.TokenToId(token)
}

func (t *Tokenizer) Close() error { return nil }
