package service

import "testing"

func TestCalculateCostCents(t *testing.T) {
	tests := []struct {
		name  string
		usage TokenUsage
		model string
		want  int64
	}{
		{
			name:  "tiny usage rounds up to one cent",
			usage: TokenUsage{PromptTokens: 1, CompletionTokens: 0, TotalTokens: 1},
			model: "gpt-4o",
			want:  1,
		},
		{
			name:  "typical tweet generation",
			usage: TokenUsage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
			model: "gpt-4o",
			want:  45,
		},
		{
			name:  "mini model is cheaper",
			usage: TokenUsage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
			model: "gpt-4o-mini",
			want:  3,
		},
		{
			name:  "unknown model falls back to default rates",
			usage: TokenUsage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
			model: "some-future-model",
			want:  45,
		},
		{
			name:  "zero usage still charges one cent",
			usage: TokenUsage{},
			model: "gpt-4o",
			want:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCostCents(tt.usage, tt.model)
			if got != tt.want {
				t.Errorf("CalculateCostCents(%+v, %q) = %d, want %d", tt.usage, tt.model, got, tt.want)
			}
		})
	}
}

func TestCapabilityFeeCents(t *testing.T) {
	if got := CapabilityFeeCents("bytedance/seedream-v4.5", MediaTypeImage); got != 12 {
		t.Errorf("listed model fee = %d, want 12", got)
	}
	if got := CapabilityFeeCents("unknown/model", MediaTypeImage); got != 15 {
		t.Errorf("unknown image model fee = %d, want 15", got)
	}
	if got := CapabilityFeeCents("unknown/model", MediaTypeVideo); got != 90 {
		t.Errorf("unknown video model fee = %d, want 90", got)
	}
	if got := CapabilityFeeCents("unknown/model", "audio"); got != 90 {
		t.Errorf("unknown media type fee = %d, want 90", got)
	}
}

func TestEstimatePromptTokens(t *testing.T) {
	if got := EstimatePromptTokens(""); got != 1 {
		t.Errorf("empty text = %d, want 1", got)
	}
	if got := EstimatePromptTokens("   "); got != 1 {
		t.Errorf("whitespace text = %d, want 1", got)
	}
	// 7 runes / 3.5 = 2
	if got := EstimatePromptTokens("abcdefg"); got != 2 {
		t.Errorf("7 runes = %d, want 2", got)
	}
	// 8 runes / 3.5 = 2.28..., rounds up to 3
	if got := EstimatePromptTokens("abcdefgh"); got != 3 {
		t.Errorf("8 runes = %d, want 3", got)
	}
}
