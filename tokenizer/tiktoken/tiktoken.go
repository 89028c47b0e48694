// Package tiktoken counts tokens with OpenAI's BPE vocabularies.
package tiktoken

import (
	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer wraps a tiktoken encoding.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New resolves the encoding for a model name, falling back to looking the
// name up as an encoding name (e.g. "cl100k_base").
func New(name string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &Tokenizer{enc: enc}, nil
}

// Encode returns the token IDs for text.
func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// CountTokens returns the number of tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.Encode(text))
}

// Decode reassembles text from token IDs.
func (t *Tokenizer) Decode(ids []int) string {
	return t.enc.Decode(ids)
}
