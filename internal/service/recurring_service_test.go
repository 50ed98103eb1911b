package service

import (
	"context"
	"testing"
	"time"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/transfer"
)

func newRecurringFixture() (*fakeRecurringRepo, *fakeXAccountRepo, RecurringService) {
	rr := &fakeRecurringRepo{schedules: make(map[int64]*models.RecurringSchedule)}
	xa := &fakeXAccountRepo{accounts: make(map[int64]*models.XAccount)}
	return rr, xa, NewRecurringService(rr, xa)
}

func TestCreateScheduleSetsInitialNextRun(t *testing.T) {
	rr, _, svc := newRecurringFixture()

	id, err := svc.Create(context.Background(), 7, &transfer.ScheduleCreation{
		Content:   "daily update",
		Frequency: models.FrequencyDaily,
		CronExpr:  "09:00",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	schedule := rr.schedules[id]
	if schedule == nil {
		t.Fatal("schedule not stored")
	}
	if !schedule.IsActive {
		t.Error("new schedule should start active")
	}
	if !schedule.NextRunAt.After(time.Now()) {
		t.Errorf("NextRunAt = %v, want a future firing", schedule.NextRunAt)
	}
}

func TestCreateScheduleRejectsInvalidFrequency(t *testing.T) {
	_, _, svc := newRecurringFixture()

	_, err := svc.Create(context.Background(), 7, &transfer.ScheduleCreation{
		Content:   "hourly update",
		Frequency: "hourly",
		CronExpr:  "09:00",
	})
	if err == nil {
		t.Error("expected error for unsupported frequency")
	}
}

func TestCreateScheduleChecksAccountOwnership(t *testing.T) {
	rr, xa, svc := newRecurringFixture()
	xa.accounts[3] = &models.XAccount{ID: 3, UserID: 8}

	_, err := svc.Create(context.Background(), 7, &transfer.ScheduleCreation{
		Content:    "daily update",
		Frequency:  models.FrequencyDaily,
		CronExpr:   "09:00",
		XAccountID: 3,
	})
	if err == nil {
		t.Error("expected error for another user's account")
	}
	if len(rr.schedules) != 0 {
		t.Error("rejected schedule must not be stored")
	}

	xa.accounts[4] = &models.XAccount{ID: 4, UserID: 7}
	if _, err := svc.Create(context.Background(), 7, &transfer.ScheduleCreation{
		Content:    "daily update",
		Frequency:  models.FrequencyDaily,
		CronExpr:   "09:00",
		XAccountID: 4,
	}); err != nil {
		t.Errorf("Create with owned account: %v", err)
	}
}
