package service

import (
	"math"
	"strings"
)

// TokenUsage is the token accounting a text-generation call reports.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Wholesale provider rates in cents per 1M tokens.
type modelRates struct {
	InputPer1M  int64
	OutputPer1M int64
}

var pricing = map[string]modelRates{
	"gpt-4o":      {InputPer1M: 250, OutputPer1M: 1000}, // $2.50 / $10.00
	"gpt-4o-mini": {InputPer1M: 15, OutputPer1M: 60},
}

const (
	defaultPricingModel = "gpt-4o"

	// Retail price is wholesale x60. All arithmetic stays in integer
	// cents at the ledger boundary.
	markupMultiplier = 60

	// Flat fee in cents for agent service calls without token data.
	AgentFlatFeeCents = 5
)

// Flat capability fees in cents for media generation, keyed by the
// provider's model identifier.
var capabilityFees = map[string]int64{
	"bytedance/seedream-v4.5":                  12,
	"alibaba/wan-2.6/text-to-image":            12,
	"wavespeed-ai/wan-2.2/text-to-video-480p":  45,
	"wavespeed-ai/wan-2.2/text-to-video-720p":  75,
	"bytedance/seedance-v1-pro-fast":           45,
	"bytedance/seedance-v1-pro":                90,
	"kwaivgi/kling-v2.1-standard":              90,
}

var mediaTypeDefaultFees = map[string]int64{
	MediaTypeImage: 15,
	MediaTypeVideo: 90,
}

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// CalculateCostCents converts token usage into a retail charge. Unknown
// models fall back to the default model's rates. Rounds up, never below
// one cent, so near-zero usage still costs something.
func CalculateCostCents(usage TokenUsage, model string) int64 {
	rates, ok := pricing[model]
	if !ok {
		rates = pricing[defaultPricingModel]
	}

	inputCost := float64(usage.PromptTokens) / 1_000_000 * float64(rates.InputPer1M)
	outputCost := float64(usage.CompletionTokens) / 1_000_000 * float64(rates.OutputPer1M)

	cents := int64(math.Ceil((inputCost + outputCost) * markupMultiplier))
	if cents < 1 {
		cents = 1
	}
	return cents
}

// CapabilityFeeCents returns the flat charge for a media generation call.
// Models without a listed fee get the media type's default.
func CapabilityFeeCents(modelID, mediaType string) int64 {
	if fee, ok := capabilityFees[modelID]; ok {
		return fee
	}
	if fee, ok := mediaTypeDefaultFees[mediaType]; ok {
		return fee
	}
	return mediaTypeDefaultFees[MediaTypeVideo]
}

// EstimatePromptTokens gives a coarse token estimate when a provider
// does not report counts. English averages ~4 chars/token, CJK can be
// denser; dividing by 3.5 avoids undercounting too aggressively.
func EstimatePromptTokens(text string) int {
	length := len([]rune(strings.TrimSpace(text)))
	if length == 0 {
		return 1
	}
	estimate := int(math.Ceil(float64(length) / 3.5))
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}
