package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/dghubble/oauth1"
)

const (
	xAPIBase       = "https://api.x.com/2"
	xMediaUpload   = "https://upload.twitter.com/1.1/media/upload.json"
	xClientTimeout = 30 * time.Second
)

// PostResult is the gateway's only output shape. Provider rejections,
// rate limits and network failures all land in Error; nothing escapes
// the gateway as a Go error from a publish call.
type PostResult struct {
	Success bool   `json:"success"`
	TweetID string `json:"tweet_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type VerifyResult struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
	Error    string `json:"error,omitempty"`
}

type RecentTweet struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
	Impressions int64     `json:"impressions"`
}

type XService interface {
	Publish(ctx context.Context, content string, creds XCredentials) PostResult
	PublishWithMedia(ctx context.Context, content string, media []byte, mimeType string, creds XCredentials) PostResult
	Verify(ctx context.Context, creds XCredentials) VerifyResult
	ListRecent(ctx context.Context, limit int, excludeIDs []string, creds XCredentials) ([]*RecentTweet, error)
}

type xService struct{}

func NewXService() XService {
	return &xService{}
}

func (s *xService) client(ctx context.Context, creds XCredentials) *http.Client {
	oauthConfig := oauth1.NewConfig(creds.ApiKey, creds.ApiSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)

	client := oauthConfig.Client(ctx, token)
	client.Timeout = xClientTimeout
	return client
}

func (s *xService) Publish(ctx context.Context, content string, creds XCredentials) PostResult {
	return s.publish(ctx, content, "", creds)
}

// PublishWithMedia uploads the media first, then attaches it to the
// tweet. An upload failure is reported the same way as a publish
// failure; the caller sees one failed result either way.
func (s *xService) PublishWithMedia(ctx context.Context, content string, media []byte, mimeType string, creds XCredentials) PostResult {
	mediaID, err := s.uploadMedia(ctx, media, mimeType, creds)
	if err != nil {
		slog.Info(err.Error())
		return PostResult{Success: false, Error: err.Error()}
	}
	return s.publish(ctx, content, mediaID, creds)
}

func (s *xService) publish(ctx context.Context, content, mediaID string, creds XCredentials) PostResult {
	payload := map[string]interface{}{"text": content}
	if mediaID != "" {
		payload["media"] = map[string]interface{}{"media_ids": []string{mediaID}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return PostResult{Success: false, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, xAPIBase+"/tweets", bytes.NewReader(body))
	if err != nil {
		return PostResult{Success: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client(ctx, creds).Do(req)
	if err != nil {
		slog.Info(err.Error())
		return PostResult{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	var tweetResponse struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tweetResponse); err != nil {
		slog.Info(err.Error())
		return PostResult{Success: false, Error: fmt.Sprintf("unexpected response (%d)", resp.StatusCode)}
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		message := tweetResponse.Detail
		if message == "" {
			message = tweetResponse.Title
		}
		if message == "" {
			message = fmt.Sprintf("publish rejected (%d)", resp.StatusCode)
		}
		slog.Info(message)
		return PostResult{Success: false, Error: message}
	}

	return PostResult{Success: true, TweetID: tweetResponse.Data.ID}
}

func (s *xService) uploadMedia(ctx context.Context, media []byte, mimeType string, creds XCredentials) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("media", "media")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(media); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, xMediaUpload, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client(ctx, creds).Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("media upload failed (%d): %s", resp.StatusCode, body)
	}

	var uploadResponse struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResponse); err != nil {
		return "", err
	}
	if uploadResponse.MediaIDString == "" {
		return "", fmt.Errorf("media upload returned no media id")
	}
	return uploadResponse.MediaIDString, nil
}

// Verify is a zero-side-effect identity check used when credentials are
// registered and on demand from settings.
func (s *xService) Verify(ctx context.Context, creds XCredentials) VerifyResult {
	me, err := s.fetchMe(ctx, creds)
	if err != nil {
		return VerifyResult{Valid: false, Error: err.Error()}
	}
	return VerifyResult{Valid: true, Username: me.Username}
}

type xUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (s *xService) fetchMe(ctx context.Context, creds XCredentials) (*xUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, xAPIBase+"/users/me", nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client(ctx, creds).Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("credential check failed (%d)", resp.StatusCode)
	}

	var meResponse struct {
		Data xUser `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meResponse); err != nil {
		return nil, err
	}
	return &meResponse.Data, nil
}

// ListRecent fetches the account's latest tweets for reconciling posts
// published outside this service. Read-side only, no exactly-once
// guarantee.
func (s *xService) ListRecent(ctx context.Context, limit int, excludeIDs []string, creds XCredentials) ([]*RecentTweet, error) {
	me, err := s.fetchMe(ctx, creds)
	if err != nil {
		return nil, err
	}

	if limit < 5 {
		limit = 5 // API minimum for max_results
	}
	if limit > 100 {
		limit = 100
	}

	params := url.Values{}
	params.Set("max_results", fmt.Sprintf("%d", limit))
	params.Set("tweet.fields", "created_at,public_metrics")

	endpoint := fmt.Sprintf("%s/users/%s/tweets?%s", xAPIBase, me.ID, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client(ctx, creds).Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timeline fetch failed (%d)", resp.StatusCode)
	}

	var timelineResponse struct {
		Data []struct {
			ID            string    `json:"id"`
			Text          string    `json:"text"`
			CreatedAt     time.Time `json:"created_at"`
			PublicMetrics struct {
				ImpressionCount int64 `json:"impression_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&timelineResponse); err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	var tweets []*RecentTweet
	for _, t := range timelineResponse.Data {
		if _, ok := excluded[t.ID]; ok {
			continue
		}
		tweets = append(tweets, &RecentTweet{
			ID:          t.ID,
			Text:        t.Text,
			CreatedAt:   t.CreatedAt,
			Impressions: t.PublicMetrics.ImpressionCount,
		})
	}
	return tweets, nil
}
