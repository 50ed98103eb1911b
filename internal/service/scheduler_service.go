package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
)

// SchedulerResult summarizes one sweep. Success is false only when the
// sweep could not run at all; per-item failures are recorded on the
// items themselves and still count as processed.
type SchedulerResult struct {
	Success            bool   `json:"success"`
	PostsProcessed     int    `json:"postsProcessed"`
	SchedulesProcessed int    `json:"schedulesProcessed"`
	Error              string `json:"error,omitempty"`
}

type SchedulerService interface {
	Run(ctx context.Context) SchedulerResult
	PublishPost(ctx context.Context, postID int64) error
}

type schedulerService struct {
	posts       repository.PostRepository
	schedules   repository.RecurringRepository
	assets      repository.MediaAssetRepository
	credentials CredentialService
	knowledge   KnowledgeService
	openai      OpenAIService
	credits     CreditService
	x           XService
	r2          *R2Service
}

func NewSchedulerService(
	posts repository.PostRepository,
	schedules repository.RecurringRepository,
	assets repository.MediaAssetRepository,
	credentials CredentialService,
	knowledge KnowledgeService,
	openai OpenAIService,
	credits CreditService,
	x XService,
	r2 *R2Service,
) SchedulerService {
	return &schedulerService{
		posts:       posts,
		schedules:   schedules,
		assets:      assets,
		credentials: credentials,
		knowledge:   knowledge,
		openai:      openai,
		credits:     credits,
		x:           x,
		r2:          r2,
	}
}

// Run is one sweep of the scheduler: publish every due one-off post,
// then fire every due recurring schedule. Sweeps may overlap; the claim
// on posts and the guarded advance on schedules keep each firing
// single-owner.
func (s *schedulerService) Run(ctx context.Context) SchedulerResult {
	now := time.Now()
	result := SchedulerResult{Success: true}

	duePosts, err := s.posts.ListDue(ctx, now)
	if err != nil {
		slog.Info(err.Error())
		return SchedulerResult{Success: false, Error: err.Error()}
	}

	for _, post := range duePosts {
		claimed, err := s.posts.Claim(ctx, post.ID)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if !claimed {
			continue
		}
		s.processPost(ctx, post)
		result.PostsProcessed++
	}

	dueSchedules, err := s.schedules.ListDue(ctx, now)
	if err != nil {
		slog.Info(err.Error())
		return SchedulerResult{
			Success:        false,
			PostsProcessed: result.PostsProcessed,
			Error:          err.Error(),
		}
	}

	for _, schedule := range dueSchedules {
		if s.processSchedule(ctx, schedule) {
			result.SchedulesProcessed++
		}
	}

	return result
}

// PublishPost claims and publishes a single post outside the sweep,
// used by the queue worker for posts scheduled at or before creation
// time. A lost claim is not an error; the sweep got there first.
func (s *schedulerService) PublishPost(ctx context.Context, postID int64) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return nil
	}

	claimed, err := s.posts.Claim(ctx, postID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	s.processPost(ctx, post)
	return nil
}

// processPost takes a claimed post to a terminal status. Every path out
// of here writes either posted or failed; a post never stays in
// processing past this call.
func (s *schedulerService) processPost(ctx context.Context, post *models.Post) {
	resolved, err := s.credentials.Resolve(ctx, post.UserID, post.XAccountID.Int64)
	if err != nil {
		s.failPost(ctx, post.ID, err.Error())
		return
	}
	if resolved == nil {
		s.failPost(ctx, post.ID, "credentials not configured")
		return
	}

	var postResult PostResult
	if post.MediaAssetID.Valid {
		media, mimeType, err := s.loadMedia(ctx, post.MediaAssetID.Int64)
		if err != nil {
			s.failPost(ctx, post.ID, fmt.Sprintf("media unavailable: %s", err.Error()))
			return
		}
		postResult = s.x.PublishWithMedia(ctx, post.Content, media, mimeType, resolved.Credentials)
	} else {
		postResult = s.x.Publish(ctx, post.Content, resolved.Credentials)
	}

	if !postResult.Success {
		s.failPost(ctx, post.ID, postResult.Error)
		return
	}

	err = s.posts.SetResult(ctx, post.ID, models.PostStatusPosted,
		sql.NullTime{Time: time.Now(), Valid: true},
		sql.NullString{String: postResult.TweetID, Valid: true},
		sql.NullString{})
	if err != nil {
		slog.Info(err.Error())
	}
}

func (s *schedulerService) failPost(ctx context.Context, postID int64, message string) {
	err := s.posts.SetResult(ctx, postID, models.PostStatusFailed,
		sql.NullTime{}, sql.NullString{},
		sql.NullString{String: message, Valid: true})
	if err != nil {
		slog.Info(err.Error())
	}
}

func (s *schedulerService) loadMedia(ctx context.Context, assetID int64) ([]byte, string, error) {
	asset, isExist, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, "", err
	}
	if !isExist {
		return nil, "", fmt.Errorf("media asset not found")
	}

	data, err := s.r2.GetFromR2(ctx, asset.FileURL)
	if err != nil {
		return nil, "", err
	}
	return data, asset.FileType, nil
}

// processSchedule fires one due recurring schedule and reports whether
// it counted as processed. A schedule without usable credentials is
// skipped without advancing next_run_at, so it fires as soon as the
// user fixes their credentials. Once credentials resolve, the guarded
// advance claims the firing before anything is published; losing that
// guard means a concurrent sweep owns this firing. A claimed firing
// always records a post row, success or not.
func (s *schedulerService) processSchedule(ctx context.Context, schedule *models.RecurringSchedule) bool {
	resolved, err := s.credentials.Resolve(ctx, schedule.UserID, schedule.XAccountID.Int64)
	if err != nil || resolved == nil {
		if err != nil {
			slog.Info(err.Error())
		}
		return false
	}

	if !s.claimFiring(ctx, schedule) {
		return false
	}

	content := schedule.Content
	var generationError string

	if schedule.UseAI {
		content, generationError = s.generateContent(ctx, schedule)
	}

	var postResult PostResult
	if generationError != "" {
		postResult = PostResult{Success: false, Error: generationError}
	} else {
		postResult = s.x.Publish(ctx, content, resolved.Credentials)
	}

	s.recordFiring(ctx, schedule, content, resolved, postResult)
	return true
}

// claimFiring advances next_run_at before any publish attempt. The
// guard on the previous value makes the advance itself the claim, so a
// firing that overlapping sweeps both selected publishes exactly once.
func (s *schedulerService) claimFiring(ctx context.Context, schedule *models.RecurringSchedule) bool {
	next, err := NextRun(schedule.Frequency, schedule.CronExpr, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return false
	}

	advanced, err := s.schedules.UpdateNextRun(ctx, schedule.ID, schedule.NextRunAt, next)
	if err != nil {
		slog.Info(err.Error())
		return false
	}
	if !advanced {
		slog.Info("schedule already advanced by a concurrent sweep")
	}
	return advanced
}

func (s *schedulerService) generateContent(ctx context.Context, schedule *models.RecurringSchedule) (string, string) {
	knowledgeContext, activeCount, err := s.knowledge.BuildContext(ctx, schedule.UserID)
	if err != nil {
		return "", err.Error()
	}
	if activeCount == 0 {
		return "", "no active knowledge sources"
	}

	generated := s.openai.GenerateTweet(ctx, knowledgeContext, schedule.AIPrompt.String, schedule.AILanguage.String)
	if !generated.Success {
		return "", generated.Error
	}

	// Generation cost is sunk at this point; a failed charge is logged
	// but does not block publishing.
	if generated.Usage != nil {
		if _, err := s.credits.ChargeUsage(ctx, schedule.UserID, *generated.Usage, generated.Model, "recurring"); err != nil {
			slog.Info(err.Error())
		}
	}

	return generated.Content, ""
}

// recordFiring persists a post row for this firing so that recurring
// output shows up in the user's post history like one-off posts do.
func (s *schedulerService) recordFiring(ctx context.Context, schedule *models.RecurringSchedule, content string, resolved *ResolvedCredentials, postResult PostResult) {
	post := &models.Post{
		UserID:      schedule.UserID,
		Content:     content,
		ScheduledAt: sql.NullTime{Time: schedule.NextRunAt, Valid: true},
	}
	if resolved.AccountID != 0 {
		post.XAccountID = sql.NullInt64{Int64: resolved.AccountID, Valid: true}
	}

	if postResult.Success {
		post.Status = models.PostStatusPosted
		post.PostedAt = sql.NullTime{Time: time.Now(), Valid: true}
		post.TweetID = sql.NullString{String: postResult.TweetID, Valid: true}
	} else {
		post.Status = models.PostStatusFailed
		post.Error = sql.NullString{String: postResult.Error, Valid: true}
	}

	if _, err := s.posts.Create(ctx, nil, post); err != nil {
		slog.Info(err.Error())
	}
}

// NextRun computes the next firing after from, for a schedule firing at
// the "HH:MM" in cronExpr. Today's occurrence is used when it is still
// ahead of from; otherwise the occurrence one day, week or month later.
// A schedule that fired late therefore drifts to the wall-clock time on
// the following period rather than backfilling missed occurrences.
func NextRun(frequency, cronExpr string, from time.Time) (time.Time, error) {
	switch frequency {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
	default:
		return time.Time{}, fmt.Errorf("invalid frequency: %s", frequency)
	}

	parts := strings.Split(cronExpr, ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time format: %s", cronExpr)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("invalid hour: %s", parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid minute: %s", parts[1])
	}

	candidate := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	if candidate.After(from) {
		return candidate, nil
	}

	switch frequency {
	case models.FrequencyDaily:
		return candidate.AddDate(0, 0, 1), nil
	case models.FrequencyWeekly:
		return candidate.AddDate(0, 0, 7), nil
	default:
		return addMonthClamped(candidate), nil
	}
}

// addMonthClamped advances one calendar month, clamping to the last day
// of the target month. A day-31 schedule fires on Feb 28/29 instead of
// normalizing past February entirely.
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	lastDay := time.Date(year, month+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month+1, day, t.Hour(), t.Minute(), 0, 0, t.Location())
}
