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

const wavespeedBase = "https://api.wavespeed.ai/api/v3"

type MediaTask struct {
	ID        string   `json:"id"`
	Model     string   `json:"model"`
	Status    string   `json:"status"` // created, processing, completed, failed
	Outputs   []string `json:"outputs"`
	Error     string   `json:"error,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
	URLs      struct {
		Get string `json:"get"`
	} `json:"urls"`
}

type MediaSubmitParams struct {
	ModelID     string
	Prompt      string
	MediaType   string
	Duration    int    // seconds, video only
	AspectRatio string // "16:9", "9:16", "1:1", ...
}

type WavespeedService interface {
	SubmitTask(ctx context.Context, params MediaSubmitParams) (*MediaTask, error)
	GetTask(ctx context.Context, taskIDOrURL string) (*MediaTask, error)
}

type wavespeedService struct {
	cfg    config.Config
	client *http.Client
}

func NewWavespeedService(cfg config.Config) WavespeedService {
	return &wavespeedService{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Seedream image sizes per canonical aspect ratio.
var seedreamSizes = map[string]string{
	"1:1":  "1024*1024",
	"16:9": "1344*768",
	"9:16": "768*1344",
	"4:3":  "1152*896",
	"3:4":  "896*1152",
}

// Each model family names its parameters differently; the canonical
// params are translated per family.
func buildTaskBody(params MediaSubmitParams) map[string]interface{} {
	body := map[string]interface{}{
		"prompt": params.Prompt,
		"seed":   -1,
	}

	ratio := params.AspectRatio
	if ratio == "" {
		ratio = "16:9"
	}

	switch {
	case strings.HasPrefix(params.ModelID, "bytedance/seedream-"):
		if size, ok := seedreamSizes[ratio]; ok {
			body["size"] = size
		}
	case strings.HasPrefix(params.ModelID, "bytedance/seedance-"):
		body["aspect_ratio"] = ratio
		if params.Duration > 0 {
			body["duration"] = params.Duration
		}
		body["generate_audio"] = false
	case strings.HasPrefix(params.ModelID, "kwaivgi/"):
		body["aspect_ratio"] = ratio
		if params.Duration > 0 {
			body["duration"] = params.Duration
		}
	default:
		body["aspect_ratio"] = ratio
		if params.Duration > 0 {
			body["duration"] = params.Duration
		}
	}

	return body
}

func (s *wavespeedService) SubmitTask(ctx context.Context, params MediaSubmitParams) (*MediaTask, error) {
	payload, err := json.Marshal(buildTaskBody(params))
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s", wavespeedBase, params.ModelID)
	task, err := s.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return task, nil
}

// GetTask accepts either the poll URL returned on submit or a bare task
// id. The provider reports "not finished" for in-flight tasks; that is
// mapped to a processing status, not an error.
func (s *wavespeedService) GetTask(ctx context.Context, taskIDOrURL string) (*MediaTask, error) {
	endpoint := taskIDOrURL
	if !strings.HasPrefix(taskIDOrURL, "http") {
		endpoint = fmt.Sprintf("%s/predictions/%s", wavespeedBase, taskIDOrURL)
	}

	task, err := s.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not finished") {
			return &MediaTask{Status: "processing"}, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return task, nil
}

func (s *wavespeedService) do(ctx context.Context, method, endpoint string, payload []byte) (*MediaTask, error) {
	if s.cfg.WavespeedAPIKey == "" {
		return nil, fmt.Errorf("missing WaveSpeed API key")
	}

	var body *bytes.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.WavespeedAPIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("non-JSON response (%d)", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK || envelope.Code != 200 {
		message := envelope.Message
		if message == "" {
			message = fmt.Sprintf("provider error %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%s", message)
	}

	var task MediaTask
	if err := json.Unmarshal(envelope.Data, &task); err != nil {
		return nil, err
	}
	return &task, nil
}
