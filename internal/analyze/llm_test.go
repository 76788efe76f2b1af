package analyze

import (
	"context"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type fakeCompleter struct {
	params []openai.ChatCompletionNewParams
	resp   *openai.ChatCompletion
	err    error
}

func (f *fakeCompleter) New(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.params = append(f.params, params)
	return f.resp, f.err
}

func TestSupportsJSONMode(t *testing.T) {
	cases := []struct {
		model string
		want  bool
	}{
		{"gpt-4o", true},
		{"gpt-4o-mini", true},
		{"gpt-4o-2024-08-06", true},
		{"gpt-3.5-turbo-1106", true},
		{"o1-preview", false},
		{"text-davinci-003", false},
	}
	for _, tc := range cases {
		if got := supportsJSONMode(tc.model); got != tc.want {
			t.Errorf("supportsJSONMode(%q) = %v, want %v", tc.model, got, tc.want)
		}
	}
}

func TestChatCompletionSetsResponseFormatOnlyForAllowedModels(t *testing.T) {
	f := &fakeCompleter{resp: &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
	}}
	c := &OpenAICaller{completions: f}

	out, err := c.ChatCompletion(context.Background(), ChatRequest{Model: "gpt-4o", System: "s", User: "u", ForceJSON: true})
	if err != nil || out != "ok" {
		t.Fatalf("out = %q, err = %v", out, err)
	}
	if f.params[0].ResponseFormat.OfJSONObject == nil {
		t.Error("json_object response format expected for gpt-4o")
	}

	_, err = c.ChatCompletion(context.Background(), ChatRequest{Model: "o1-preview", System: "s", User: "u", ForceJSON: true})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if f.params[1].ResponseFormat.OfJSONObject != nil {
		t.Error("unlisted model must not receive response_format")
	}
}

func TestChatCompletionNoChoices(t *testing.T) {
	f := &fakeCompleter{resp: &openai.ChatCompletion{}}
	c := &OpenAICaller{completions: f}
	if _, err := c.ChatCompletion(context.Background(), ChatRequest{Model: "gpt-4o", User: "u"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewOpenAICallerRequiresKey(t *testing.T) {
	if _, err := NewOpenAICaller("  "); err == nil {
		t.Fatal("expected error for blank key")
	}
}
