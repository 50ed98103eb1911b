package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/transfer"
)

func TestNextRun(t *testing.T) {
	utc := time.UTC

	tests := []struct {
		name      string
		frequency string
		cronExpr  string
		from      time.Time
		want      time.Time
	}{
		{
			name:      "daily fires later today when time is still ahead",
			frequency: models.FrequencyDaily,
			cronExpr:  "09:00",
			from:      time.Date(2024, 1, 1, 8, 0, 0, 0, utc),
			want:      time.Date(2024, 1, 1, 9, 0, 0, 0, utc),
		},
		{
			name:      "daily moves to tomorrow after firing time passed",
			frequency: models.FrequencyDaily,
			cronExpr:  "09:00",
			from:      time.Date(2024, 1, 1, 9, 5, 0, 0, utc),
			want:      time.Date(2024, 1, 2, 9, 0, 0, 0, utc),
		},
		{
			name:      "exact firing time counts as passed",
			frequency: models.FrequencyDaily,
			cronExpr:  "09:00",
			from:      time.Date(2024, 1, 1, 9, 0, 0, 0, utc),
			want:      time.Date(2024, 1, 2, 9, 0, 0, 0, utc),
		},
		{
			name:      "weekly jumps a full week",
			frequency: models.FrequencyWeekly,
			cronExpr:  "18:30",
			from:      time.Date(2024, 1, 1, 19, 0, 0, 0, utc),
			want:      time.Date(2024, 1, 8, 18, 30, 0, 0, utc),
		},
		{
			name:      "monthly keeps day of month",
			frequency: models.FrequencyMonthly,
			cronExpr:  "09:30",
			from:      time.Date(2024, 1, 15, 10, 0, 0, 0, utc),
			want:      time.Date(2024, 2, 15, 9, 30, 0, 0, utc),
		},
		{
			name:      "monthly clamps jan 31 to end of february",
			frequency: models.FrequencyMonthly,
			cronExpr:  "09:00",
			from:      time.Date(2023, 1, 31, 10, 0, 0, 0, utc),
			want:      time.Date(2023, 2, 28, 9, 0, 0, 0, utc),
		},
		{
			name:      "monthly clamps to leap day in a leap year",
			frequency: models.FrequencyMonthly,
			cronExpr:  "09:00",
			from:      time.Date(2024, 1, 31, 10, 0, 0, 0, utc),
			want:      time.Date(2024, 2, 29, 9, 0, 0, 0, utc),
		},
		{
			name:      "monthly clamps mar 31 to apr 30",
			frequency: models.FrequencyMonthly,
			cronExpr:  "09:00",
			from:      time.Date(2024, 3, 31, 10, 0, 0, 0, utc),
			want:      time.Date(2024, 4, 30, 9, 0, 0, 0, utc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRun(tt.frequency, tt.cronExpr, tt.from)
			if err != nil {
				t.Fatalf("NextRun returned error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextRun = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextRunRejectsBadInput(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, expr := range []string{"", "9", "25:00", "09:60", "aa:bb"} {
		if _, err := NextRun(models.FrequencyDaily, expr, from); err == nil {
			t.Errorf("NextRun accepted invalid time %q", expr)
		}
	}
	// An invalid frequency is rejected regardless of whether today's
	// firing time is still ahead of from.
	if _, err := NextRun("hourly", "09:00", from); err == nil {
		t.Error("NextRun accepted invalid frequency before today's firing time")
	}
	afternoon := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if _, err := NextRun("hourly", "09:00", afternoon); err == nil {
		t.Error("NextRun accepted invalid frequency after today's firing time")
	}
}

// In-memory fakes for the orchestrator tests.

type fakePostRepo struct {
	posts  map[int64]*models.Post
	nextID int64
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[int64]*models.Post), nextID: 1}
}

func (r *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	id := r.nextID
	r.nextID++
	clone := *post
	clone.ID = id
	r.posts[id] = &clone
	return id, nil
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	post, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	clone := *post
	return &clone, nil
}

func (r *fakePostRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	var out []*models.Post
	for _, post := range r.posts {
		if post.UserID == userID {
			out = append(out, post)
		}
	}
	return out, nil
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	var due []*models.Post
	for _, post := range r.posts {
		if post.Status == models.PostStatusScheduled && post.ScheduledAt.Valid && !post.ScheduledAt.Time.After(now) {
			clone := *post
			due = append(due, &clone)
		}
	}
	return due, nil
}

func (r *fakePostRepo) Claim(ctx context.Context, postID int64) (bool, error) {
	post, ok := r.posts[postID]
	if !ok || post.Status != models.PostStatusScheduled {
		return false, nil
	}
	post.Status = models.PostStatusProcessing
	return true, nil
}

func (r *fakePostRepo) SetResult(ctx context.Context, postID int64, status string, postedAt sql.NullTime, tweetID, errMsg sql.NullString) error {
	post := r.posts[postID]
	post.Status = status
	post.PostedAt = postedAt
	post.TweetID = tweetID
	post.Error = errMsg
	return nil
}

func (r *fakePostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	post, ok := r.posts[postID]
	return ok && post.UserID == userID, nil
}

func (r *fakePostRepo) Remove(ctx context.Context, id int64) error {
	delete(r.posts, id)
	return nil
}

type fakeRecurringRepo struct {
	schedules map[int64]*models.RecurringSchedule

	// dueOverride, when set, is returned by ListDue as-is. It simulates
	// a sweep whose due list was read before another sweep advanced the
	// stored schedules.
	dueOverride []*models.RecurringSchedule
}

func (r *fakeRecurringRepo) Create(ctx context.Context, schedule *models.RecurringSchedule) (int64, error) {
	id := int64(len(r.schedules) + 1)
	schedule.ID = id
	r.schedules[id] = schedule
	return id, nil
}

func (r *fakeRecurringRepo) GetByID(ctx context.Context, id int64) (*models.RecurringSchedule, error) {
	return r.schedules[id], nil
}

func (r *fakeRecurringRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.RecurringSchedule, error) {
	return nil, nil
}

func (r *fakeRecurringRepo) ListDue(ctx context.Context, now time.Time) ([]*models.RecurringSchedule, error) {
	if r.dueOverride != nil {
		return r.dueOverride, nil
	}
	var due []*models.RecurringSchedule
	for _, s := range r.schedules {
		if s.IsActive && !s.NextRunAt.After(now) {
			clone := *s
			due = append(due, &clone)
		}
	}
	return due, nil
}

func (r *fakeRecurringRepo) UpdateNextRun(ctx context.Context, id int64, prevNextRun, nextRun time.Time) (bool, error) {
	s, ok := r.schedules[id]
	if !ok || !s.NextRunAt.Equal(prevNextRun) {
		return false, nil
	}
	s.NextRunAt = nextRun
	return true, nil
}

func (r *fakeRecurringRepo) Update(ctx context.Context, schedule *models.RecurringSchedule) error {
	r.schedules[schedule.ID] = schedule
	return nil
}

func (r *fakeRecurringRepo) SetActive(ctx context.Context, id int64, isActive bool) error {
	r.schedules[id].IsActive = isActive
	return nil
}

func (r *fakeRecurringRepo) CheckByUserID(ctx context.Context, scheduleID, userID int64) (bool, error) {
	s, ok := r.schedules[scheduleID]
	return ok && s.UserID == userID, nil
}

func (r *fakeRecurringRepo) Remove(ctx context.Context, id int64) error {
	delete(r.schedules, id)
	return nil
}

type fakeAssetRepo struct{}

func (r *fakeAssetRepo) Create(ctx context.Context, tx *sql.Tx, asset *models.MediaAsset) (int64, error) {
	return 0, nil
}

func (r *fakeAssetRepo) GetByID(ctx context.Context, id int64) (*models.MediaAsset, bool, error) {
	return nil, false, nil
}

func (r *fakeAssetRepo) Remove(ctx context.Context, id int64) error { return nil }

type fakeCredentialService struct {
	byUser map[int64]*ResolvedCredentials
}

func (s *fakeCredentialService) Resolve(ctx context.Context, userID, preferredAccountID int64) (*ResolvedCredentials, error) {
	return s.byUser[userID], nil
}

type stubKnowledgeService struct {
	context     string
	activeCount int
}

func (s *stubKnowledgeService) Create(ctx context.Context, userID int64, data *transfer.KnowledgeCreation) (int64, error) {
	return 0, nil
}

func (s *stubKnowledgeService) List(ctx context.Context, userID int64) ([]*models.KnowledgeSource, error) {
	return nil, nil
}

func (s *stubKnowledgeService) Update(ctx context.Context, userID, sourceID int64, data *transfer.KnowledgeCreation, isActive bool) error {
	return nil
}

func (s *stubKnowledgeService) Remove(ctx context.Context, userID, sourceID int64) error {
	return nil
}

func (s *stubKnowledgeService) BuildContext(ctx context.Context, userID int64) (string, int, error) {
	return s.context, s.activeCount, nil
}

type fakeXService struct {
	published []string
	failWith  string
}

func (s *fakeXService) Publish(ctx context.Context, content string, creds XCredentials) PostResult {
	if s.failWith != "" {
		return PostResult{Success: false, Error: s.failWith}
	}
	s.published = append(s.published, content)
	return PostResult{Success: true, TweetID: "tw-1"}
}

func (s *fakeXService) PublishWithMedia(ctx context.Context, content string, media []byte, mimeType string, creds XCredentials) PostResult {
	return s.Publish(ctx, content, creds)
}

func (s *fakeXService) Verify(ctx context.Context, creds XCredentials) VerifyResult {
	return VerifyResult{Valid: true, Username: "tester"}
}

func (s *fakeXService) ListRecent(ctx context.Context, limit int, excludeIDs []string, creds XCredentials) ([]*RecentTweet, error) {
	return nil, nil
}

type fakeOpenAIService struct {
	result GenerateResult
}

func (s *fakeOpenAIService) GenerateTweet(ctx context.Context, knowledgeContext, prompt, language string) GenerateResult {
	return s.result
}

type chargeCall struct {
	userID int64
	usage  TokenUsage
	model  string
	source string
}

type fakeCreditService struct {
	charges []chargeCall
}

func (s *fakeCreditService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return 0, nil
}

func (s *fakeCreditService) HasCredits(ctx context.Context, userID int64) (bool, error) {
	return true, nil
}

func (s *fakeCreditService) ChargeUsage(ctx context.Context, userID int64, usage TokenUsage, model, source string) (*ChargeResult, error) {
	s.charges = append(s.charges, chargeCall{userID: userID, usage: usage, model: model, source: source})
	return &ChargeResult{CostCents: CalculateCostCents(usage, model)}, nil
}

func (s *fakeCreditService) ChargeFlatFee(ctx context.Context, userID, feeCents int64, source string) (*ChargeResult, error) {
	return &ChargeResult{CostCents: feeCents}, nil
}

func (s *fakeCreditService) ChargeCapability(ctx context.Context, userID int64, modelID, mediaType, source, taskID string) (*ChargeResult, error) {
	return &ChargeResult{}, nil
}

func (s *fakeCreditService) AddCredits(ctx context.Context, userID, amountCents int64, stripeSessionID string) (int64, error) {
	return 0, nil
}

func (s *fakeCreditService) ListTransactions(ctx context.Context, userID int64) ([]*models.CreditTransaction, error) {
	return nil, nil
}

func (s *fakeCreditService) TrackUsage(ctx context.Context, userID int64, source, provider, model string, usage TokenUsage, metadata map[string]interface{}) error {
	return nil
}

type schedulerFixture struct {
	posts     *fakePostRepo
	schedules *fakeRecurringRepo
	creds     *fakeCredentialService
	knowledge *stubKnowledgeService
	openai    *fakeOpenAIService
	credits   *fakeCreditService
	x         *fakeXService
	svc       SchedulerService
}

func newSchedulerFixture() *schedulerFixture {
	f := &schedulerFixture{
		posts:     newFakePostRepo(),
		schedules: &fakeRecurringRepo{schedules: make(map[int64]*models.RecurringSchedule)},
		creds:     &fakeCredentialService{byUser: make(map[int64]*ResolvedCredentials)},
		knowledge: &stubKnowledgeService{},
		openai:    &fakeOpenAIService{},
		credits:   &fakeCreditService{},
		x:         &fakeXService{},
	}
	f.svc = NewSchedulerService(f.posts, f.schedules, &fakeAssetRepo{},
		f.creds, f.knowledge, f.openai, f.credits, f.x, nil)
	return f
}

func (f *schedulerFixture) grantCredentials(userID int64) {
	f.creds.byUser[userID] = &ResolvedCredentials{
		AccountID:   1,
		Credentials: XCredentials{ApiKey: "k", ApiSecret: "s", AccessToken: "t", AccessTokenSecret: "ts"},
	}
}

func TestRunPublishesDuePost(t *testing.T) {
	f := newSchedulerFixture()
	f.grantCredentials(7)

	postID, _ := f.posts.Create(context.Background(), nil, &models.Post{
		UserID:      7,
		Content:     "hello world",
		Status:      models.PostStatusScheduled,
		ScheduledAt: sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true},
	})

	result := f.svc.Run(context.Background())

	if !result.Success {
		t.Fatalf("sweep failed: %s", result.Error)
	}
	if result.PostsProcessed != 1 {
		t.Errorf("PostsProcessed = %d, want 1", result.PostsProcessed)
	}

	post := f.posts.posts[postID]
	if post.Status != models.PostStatusPosted {
		t.Errorf("post status = %q, want posted", post.Status)
	}
	if !post.TweetID.Valid || post.TweetID.String != "tw-1" {
		t.Errorf("tweet id = %+v, want tw-1", post.TweetID)
	}

	// A second sweep finds nothing; the transition was terminal.
	again := f.svc.Run(context.Background())
	if again.PostsProcessed != 0 {
		t.Errorf("second sweep processed %d posts, want 0", again.PostsProcessed)
	}
	if len(f.x.published) != 1 {
		t.Errorf("published %d times, want exactly once", len(f.x.published))
	}
}

func TestRunFailsPostWithoutCredentials(t *testing.T) {
	f := newSchedulerFixture()

	postID, _ := f.posts.Create(context.Background(), nil, &models.Post{
		UserID:      7,
		Content:     "no creds",
		Status:      models.PostStatusScheduled,
		ScheduledAt: sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true},
	})

	f.svc.Run(context.Background())

	post := f.posts.posts[postID]
	if post.Status != models.PostStatusFailed {
		t.Errorf("post status = %q, want failed", post.Status)
	}
	if post.Error.String != "credentials not configured" {
		t.Errorf("post error = %q", post.Error.String)
	}
	if len(f.x.published) != 0 {
		t.Error("publish should not be attempted without credentials")
	}
}

func TestRunFailedPublishRecordsError(t *testing.T) {
	f := newSchedulerFixture()
	f.grantCredentials(7)
	f.x.failWith = "rate limited"

	postID, _ := f.posts.Create(context.Background(), nil, &models.Post{
		UserID:      7,
		Content:     "rejected",
		Status:      models.PostStatusScheduled,
		ScheduledAt: sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true},
	})

	f.svc.Run(context.Background())

	post := f.posts.posts[postID]
	if post.Status != models.PostStatusFailed {
		t.Errorf("post status = %q, want failed", post.Status)
	}
	if post.Error.String != "rate limited" {
		t.Errorf("post error = %q, want rate limited", post.Error.String)
	}
}

func TestRunSkipsScheduleWithoutCredentials(t *testing.T) {
	f := newSchedulerFixture()

	nextRun := time.Now().Add(-time.Minute)
	f.schedules.schedules[1] = &models.RecurringSchedule{
		ID:        1,
		UserID:    7,
		Content:   "static post",
		Frequency: models.FrequencyDaily,
		CronExpr:  "09:00",
		NextRunAt: nextRun,
		IsActive:  true,
	}

	result := f.svc.Run(context.Background())

	if result.SchedulesProcessed != 0 {
		t.Errorf("SchedulesProcessed = %d, want 0", result.SchedulesProcessed)
	}
	if !f.schedules.schedules[1].NextRunAt.Equal(nextRun) {
		t.Error("schedule advanced despite missing credentials")
	}
	if len(f.posts.posts) != 0 {
		t.Error("no post row should be recorded for a skipped schedule")
	}
}

func TestRunFiresStaticSchedule(t *testing.T) {
	f := newSchedulerFixture()
	f.grantCredentials(7)

	nextRun := time.Now().Add(-time.Minute)
	f.schedules.schedules[1] = &models.RecurringSchedule{
		ID:        1,
		UserID:    7,
		Content:   "daily update",
		Frequency: models.FrequencyDaily,
		CronExpr:  "09:00",
		NextRunAt: nextRun,
		IsActive:  true,
	}

	result := f.svc.Run(context.Background())

	if result.SchedulesProcessed != 1 {
		t.Fatalf("SchedulesProcessed = %d, want 1", result.SchedulesProcessed)
	}
	if len(f.x.published) != 1 || f.x.published[0] != "daily update" {
		t.Errorf("published = %v", f.x.published)
	}
	if !f.schedules.schedules[1].NextRunAt.After(time.Now()) {
		t.Error("schedule should advance to a future firing")
	}

	var recorded *models.Post
	for _, post := range f.posts.posts {
		recorded = post
	}
	if recorded == nil {
		t.Fatal("no post row recorded for the firing")
	}
	if recorded.Status != models.PostStatusPosted {
		t.Errorf("recorded post status = %q, want posted", recorded.Status)
	}
	if !recorded.XAccountID.Valid || recorded.XAccountID.Int64 != 1 {
		t.Errorf("recorded post account = %+v, want 1", recorded.XAccountID)
	}
}

func TestRunFiresOverlappingScheduleOnce(t *testing.T) {
	f := newSchedulerFixture()
	f.grantCredentials(7)

	stale := time.Now().Add(-time.Minute)
	f.schedules.schedules[1] = &models.RecurringSchedule{
		ID:        1,
		UserID:    7,
		Content:   "daily update",
		Frequency: models.FrequencyDaily,
		CronExpr:  "09:00",
		NextRunAt: stale,
		IsActive:  true,
	}

	first := f.svc.Run(context.Background())
	if first.SchedulesProcessed != 1 {
		t.Fatalf("first sweep SchedulesProcessed = %d, want 1", first.SchedulesProcessed)
	}

	// A second sweep that read its due list before the first sweep
	// advanced the schedule loses the guarded advance and must not
	// publish again.
	staleClone := *f.schedules.schedules[1]
	staleClone.NextRunAt = stale
	f.schedules.dueOverride = []*models.RecurringSchedule{&staleClone}

	second := f.svc.Run(context.Background())
	if second.SchedulesProcessed != 0 {
		t.Errorf("second sweep SchedulesProcessed = %d, want 0", second.SchedulesProcessed)
	}
	if len(f.x.published) != 1 {
		t.Errorf("schedule firing published %d times, want exactly once", len(f.x.published))
	}
	if len(f.posts.posts) != 1 {
		t.Errorf("recorded %d post rows, want exactly one", len(f.posts.posts))
	}
}

func TestRunRecordsAIFailureWithoutPublishing(t *testing.T) {
	f := newSchedulerFixture()
	f.grantCredentials(7)
	f.knowledge.activeCount = 0

	f.schedules.schedules[1] = &models.RecurringSchedule{
		ID:        1,
		UserID:    7,
		UseAI:     true,
		Frequency: models.FrequencyDaily,
		CronExpr:  "09:00",
		NextRunAt: time.Now().Add(-time.Minute),
		IsActive:  true,
	}

	result := f.svc.Run(context.Background())

	if result.SchedulesProcessed != 1 {
		t.Fatalf("SchedulesProcessed = %d, want 1", result.SchedulesProcessed)
	}
	if len(f.x.published) != 0 {
		t.Error("nothing should be published when generation fails")
	}
	if !f.schedules.schedules[1].NextRunAt.After(time.Now()) {
		t.Error("schedule should still advance after a generation failure")
	}

	var recorded *models.Post
	for _, post := range f.posts.posts {
		recorded = post
	}
	if recorded == nil {
		t.Fatal("a failed firing should still record a post row")
	}
	if recorded.Status != models.PostStatusFailed {
		t.Errorf("recorded post status = %q, want failed", recorded.Status)
	}
	if recorded.Error.String != "no active knowledge sources" {
		t.Errorf("recorded post error = %q", recorded.Error.String)
	}
}

func TestRunChargesForAIGeneration(t *testing.T) {
	f := newSchedulerFixture()
	f.grantCredentials(7)
	f.knowledge.activeCount = 2
	f.knowledge.context = "Source: docs\nsome facts"
	f.openai.result = GenerateResult{
		Success: true,
		Content: "generated tweet",
		Model:   "gpt-4o",
		Usage:   &TokenUsage{PromptTokens: 1200, CompletionTokens: 40, TotalTokens: 1240},
	}

	f.schedules.schedules[1] = &models.RecurringSchedule{
		ID:        1,
		UserID:    7,
		UseAI:     true,
		AIPrompt:  sql.NullString{String: "product news", Valid: true},
		Frequency: models.FrequencyDaily,
		CronExpr:  "09:00",
		NextRunAt: time.Now().Add(-time.Minute),
		IsActive:  true,
	}

	f.svc.Run(context.Background())

	if len(f.x.published) != 1 || f.x.published[0] != "generated tweet" {
		t.Errorf("published = %v", f.x.published)
	}
	if len(f.credits.charges) != 1 {
		t.Fatalf("charges = %d, want 1", len(f.credits.charges))
	}
	charge := f.credits.charges[0]
	if charge.userID != 7 || charge.source != "recurring" || charge.model != "gpt-4o" {
		t.Errorf("charge = %+v", charge)
	}
	if charge.usage.TotalTokens != 1240 {
		t.Errorf("charged usage = %+v", charge.usage)
	}
}
