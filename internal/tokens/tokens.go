// Package tokens estimates token costs against the provider's tokenizer so
// payloads can be shrunk before a call rather than rejected after it.
package tokens

import (
	"github.com/tiktoken-go/tokenizer"
)

// Chat-completions message accounting, mirroring the provider's documented
// formula: every message costs a fixed overhead, a populated name field costs
// one extra token, and every request ends with a reply primer.
const (
	perMessageOverhead = 4
	perNameOverhead    = 1
	replyPrimerTokens  = 2
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type Counter struct {
	codec tokenizer.Codec
}

// NewCounter returns a counter for the given model, falling back to the
// generic cl100k_base byte-pair encoding when the model is unknown.
func NewCounter(model string) *Counter {
	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		codec, _ = tokenizer.Get(tokenizer.Cl100kBase)
	}
	return &Counter{codec: codec}
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	n, err := c.codec.Count(text)
	if err != nil {
		// The BPE never fails on valid UTF-8; approximate if it somehow does.
		return len(text) / 4
	}
	return n
}

func (c *Counter) CountMessages(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += perMessageOverhead
		total += c.Count(m.Role)
		total += c.Count(m.Content)
		if m.Name != "" {
			total += c.Count(m.Name) + perNameOverhead
		}
	}
	return total + replyPrimerTokens
}
