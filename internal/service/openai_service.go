package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	config "github.com/postloom/postloom/configs"
)

const (
	openAIChatURL  = "https://api.openai.com/v1/chat/completions"
	openAIModel    = "gpt-4o"
	tweetMaxLength = 280
)

type GenerateResult struct {
	Success bool        `json:"success"`
	Content string      `json:"content,omitempty"`
	Error   string      `json:"error,omitempty"`
	Usage   *TokenUsage `json:"usage,omitempty"`
	Model   string      `json:"model,omitempty"`
}

type OpenAIService interface {
	GenerateTweet(ctx context.Context, knowledgeContext, prompt, language string) GenerateResult
}

type openAIService struct {
	cfg    config.Config
	client *http.Client
}

func NewOpenAIService(cfg config.Config) OpenAIService {
	return &openAIService{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *openAIService) GenerateTweet(ctx context.Context, knowledgeContext, prompt, language string) GenerateResult {
	if s.cfg.OpenAIAPIKey == "" {
		return GenerateResult{Success: false, Error: "missing OpenAI API key"}
	}

	languageInstruction := "IMPORTANT: Detect the language of the knowledge base content and generate the tweet in the SAME language."
	if language != "" {
		languageInstruction = fmt.Sprintf("IMPORTANT: Generate the tweet in %s.", language)
	}

	systemPrompt := fmt.Sprintf(`You are a social media expert who creates engaging tweets for X (formerly Twitter).

%s

Rules:
- Keep tweets under 280 characters (STRICT LIMIT)
- Be engaging, informative, and authentic
- Use relevant hashtags sparingly (1-2 max)
- Don't use excessive emojis (1-2 max if appropriate)
- Make the content feel natural, not robotic
- Focus on providing value to the reader
- ALWAYS match the language of the knowledge base content

You have access to the following knowledge base content to inform your tweets:

%s

Generate tweets that are relevant to this knowledge base content.`, languageInstruction, knowledgeContext)

	userPrompt := "Generate an engaging tweet based on the knowledge base content. Pick an interesting topic or fact to share."
	if prompt != "" {
		userPrompt = fmt.Sprintf("Generate a tweet about: %s", prompt)
	}

	requestBody, err := json.Marshal(chatRequest{
		Model: openAIModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   150,
		Temperature: 0.8,
	})
	if err != nil {
		return GenerateResult{Success: false, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIChatURL, bytes.NewReader(requestBody))
	if err != nil {
		return GenerateResult{Success: false, Error: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.OpenAIAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return GenerateResult{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	var completion chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		slog.Info(err.Error())
		return GenerateResult{Success: false, Error: fmt.Sprintf("unexpected response (%d)", resp.StatusCode)}
	}

	return buildGenerateResult(completion)
}

// buildGenerateResult turns a decoded completion into a GenerateResult.
// Model is always populated, falling back to the requested model when
// the response omits it, so downstream billing never sees an empty
// model name.
func buildGenerateResult(completion chatResponse) GenerateResult {
	model := completion.Model
	if model == "" {
		model = openAIModel
	}

	var usage *TokenUsage
	if completion.Usage != nil {
		usage = &TokenUsage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		}
	}

	if completion.Error != nil {
		slog.Info(completion.Error.Message)
		return GenerateResult{Success: false, Error: completion.Error.Message, Usage: usage, Model: model}
	}

	if len(completion.Choices) == 0 {
		return GenerateResult{Success: false, Error: "no content generated", Usage: usage, Model: model}
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return GenerateResult{Success: false, Error: "no content generated", Usage: usage, Model: model}
	}

	if runes := []rune(content); len(runes) > tweetMaxLength {
		content = string(runes[:tweetMaxLength-3]) + "..."
	}

	return GenerateResult{
		Success: true,
		Content: content,
		Usage:   usage,
		Model:   model,
	}
}
