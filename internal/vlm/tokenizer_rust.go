//go:build rust_tokenizers

package vlm

import (
	"fmt"

	"github.com/daulet/tokenizers"
)

// TokenizerRuntime names the tokenizer implementation compiled in.
const TokenizerRuntime = "RUST"

// Tokenizer wraps the HuggingFace Rust tokenizer bindings.
type Tokenizer struct {
	tk *tokenizers.Tokenizer
}

// NewTokenizer loads a tokenizer from the contents of a tokenizer.json file.
func NewTokenizer(data []byte) (*Tokenizer, error) {
	tk, err := tokenizers.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Tokenizer{tk: tk}, nil
}

func (t *Tokenizer) Encode(text string) ([]int, error) {
	ids, _ := t.tk.Encode(text, true)
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out, nil
}

func (t *Tokenizer) Decode(ids []int, skipSpecialTokens bool) string {
	in := make([]uint32, 0, len(ids))
	for _, id := range ids {
		if id < 0 {
			continue
		}
		in = append(in, uint32(id))
	}
	return t.tk.Decode(in, skipSpecialTokens)
}

// TokenID resolves token when it encodes to exactly one id.
func (t *Tokenizer) TokenID(token string) (int, bool) {
	ids, _ := t.tk.Encode(token, false)
	if len(ids) != 1 {
		return 0, false
	}
	return int(ids[0]), true
}

func (t *Tokenizer) Close() error { return t.tk.Close() }
