package service

import (
	"encoding/json"
	"strings"
	"testing"
)

func decodeCompletion(t *testing.T, raw string) chatResponse {
	t.Helper()
	var completion chatResponse
	if err := json.Unmarshal([]byte(raw), &completion); err != nil {
		t.Fatalf("unmarshal completion: %v", err)
	}
	return completion
}

func TestBuildGenerateResultDefaultsModel(t *testing.T) {
	completion := decodeCompletion(t, `{
		"choices": [{"message": {"content": "a tweet"}}],
		"usage": {"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120}
	}`)

	result := buildGenerateResult(completion)
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.Model != openAIModel {
		t.Errorf("model = %q, want requested model %q when response omits it", result.Model, openAIModel)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 120 {
		t.Errorf("usage = %+v, want 120 total tokens", result.Usage)
	}
}

func TestBuildGenerateResultKeepsResponseModel(t *testing.T) {
	completion := decodeCompletion(t, `{
		"model": "gpt-4o-2024-08-06",
		"choices": [{"message": {"content": "a tweet"}}]
	}`)

	result := buildGenerateResult(completion)
	if result.Model != "gpt-4o-2024-08-06" {
		t.Errorf("model = %q, want the response's model", result.Model)
	}
}

func TestBuildGenerateResultClampsLongContent(t *testing.T) {
	long := strings.Repeat("x", 300)
	completion := decodeCompletion(t, `{"choices": [{"message": {"content": "`+long+`"}}]}`)

	result := buildGenerateResult(completion)
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	runes := []rune(result.Content)
	if len(runes) != tweetMaxLength {
		t.Errorf("content length = %d, want %d", len(runes), tweetMaxLength)
	}
	if !strings.HasSuffix(result.Content, "...") {
		t.Error("clamped content should end with an ellipsis")
	}
}

func TestBuildGenerateResultPropagatesAPIError(t *testing.T) {
	completion := decodeCompletion(t, `{
		"error": {"message": "rate limit exceeded"},
		"usage": {"prompt_tokens": 5, "completion_tokens": 0, "total_tokens": 5}
	}`)

	result := buildGenerateResult(completion)
	if result.Success {
		t.Fatal("API error should not succeed")
	}
	if result.Error != "rate limit exceeded" {
		t.Errorf("error = %q", result.Error)
	}
	if result.Model != openAIModel {
		t.Errorf("model = %q, want default even on error", result.Model)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 5 {
		t.Errorf("usage = %+v, billable tokens must survive the error", result.Usage)
	}
}

func TestBuildGenerateResultNoChoices(t *testing.T) {
	result := buildGenerateResult(decodeCompletion(t, `{"model": "gpt-4o"}`))
	if result.Success || result.Error != "no content generated" {
		t.Errorf("result = %+v, want no-content failure", result)
	}
}
