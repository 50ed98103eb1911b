package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/transfer"
)

type RecurringService interface {
	Create(ctx context.Context, userID int64, sc *transfer.ScheduleCreation) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.RecurringSchedule, error)
	Update(ctx context.Context, userID, scheduleID int64, sc *transfer.ScheduleCreation) error
	Toggle(ctx context.Context, userID, scheduleID int64, isActive bool) error
	Remove(ctx context.Context, userID, scheduleID int64) error
}

type recurringService struct {
	rr repository.RecurringRepository
	xa repository.XAccountRepository
}

func NewRecurringService(rr repository.RecurringRepository, xa repository.XAccountRepository) RecurringService {
	return &recurringService{
		rr: rr,
		xa: xa,
	}
}

func (s *recurringService) validate(ctx context.Context, userID int64, sc *transfer.ScheduleCreation) error {
	if sc == nil {
		return errors.New("schedule data is nil")
	}

	if !sc.UseAI {
		content := strings.TrimSpace(sc.Content)
		if content == "" {
			return errors.New("content cannot be empty")
		}
		if len([]rune(content)) > tweetMaxLength {
			return fmt.Errorf("content exceeds %d characters", tweetMaxLength)
		}
	}

	// NextRun doubles as the validator for frequency and time-of-day.
	if _, err := NextRun(sc.Frequency, sc.CronExpr, time.Now()); err != nil {
		return err
	}

	if sc.XAccountID != 0 {
		exists, err := s.xa.CheckByUserID(ctx, sc.XAccountID, userID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.New("account does not exist")
		}
	}

	return nil
}

func (s *recurringService) Create(ctx context.Context, userID int64, sc *transfer.ScheduleCreation) (int64, error) {
	if err := s.validate(ctx, userID, sc); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	nextRun, err := NextRun(sc.Frequency, sc.CronExpr, time.Now())
	if err != nil {
		return 0, err
	}

	schedule := &models.RecurringSchedule{
		UserID:    userID,
		Content:   sc.Content,
		UseAI:     sc.UseAI,
		Frequency: sc.Frequency,
		CronExpr:  sc.CronExpr,
		NextRunAt: nextRun,
		IsActive:  true,
	}
	if sc.AIPrompt != "" {
		schedule.AIPrompt = sql.NullString{String: sc.AIPrompt, Valid: true}
	}
	if sc.AILanguage != "" {
		schedule.AILanguage = sql.NullString{String: sc.AILanguage, Valid: true}
	}
	if sc.XAccountID != 0 {
		schedule.XAccountID = sql.NullInt64{Int64: sc.XAccountID, Valid: true}
	}

	return s.rr.Create(ctx, schedule)
}

func (s *recurringService) List(ctx context.Context, userID int64) ([]*models.RecurringSchedule, error) {
	schedules, err := s.rr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting schedules")
	}
	return schedules, nil
}

func (s *recurringService) Update(ctx context.Context, userID, scheduleID int64, sc *transfer.ScheduleCreation) error {
	isValid, err := s.rr.CheckByUserID(ctx, scheduleID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err = errors.New("Schedule doesn't exist")
		slog.Info(err.Error())
		return err
	}

	if err := s.validate(ctx, userID, sc); err != nil {
		slog.Info(err.Error())
		return err
	}

	schedule, err := s.rr.GetByID(ctx, scheduleID)
	if err != nil {
		return err
	}
	if schedule == nil {
		return errors.New("Schedule doesn't exist")
	}

	// A changed firing time recomputes the next occurrence.
	if sc.Frequency != schedule.Frequency || sc.CronExpr != schedule.CronExpr {
		nextRun, err := NextRun(sc.Frequency, sc.CronExpr, time.Now())
		if err != nil {
			return err
		}
		schedule.NextRunAt = nextRun
	}

	schedule.Content = sc.Content
	schedule.UseAI = sc.UseAI
	schedule.Frequency = sc.Frequency
	schedule.CronExpr = sc.CronExpr
	schedule.AIPrompt = sql.NullString{String: sc.AIPrompt, Valid: sc.AIPrompt != ""}
	schedule.AILanguage = sql.NullString{String: sc.AILanguage, Valid: sc.AILanguage != ""}
	schedule.XAccountID = sql.NullInt64{Int64: sc.XAccountID, Valid: sc.XAccountID != 0}

	return s.rr.Update(ctx, schedule)
}

func (s *recurringService) Toggle(ctx context.Context, userID, scheduleID int64, isActive bool) error {
	isValid, err := s.rr.CheckByUserID(ctx, scheduleID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err = errors.New("Schedule doesn't exist")
		slog.Info(err.Error())
		return err
	}

	return s.rr.SetActive(ctx, scheduleID, isActive)
}

func (s *recurringService) Remove(ctx context.Context, userID, scheduleID int64) error {
	isValid, err := s.rr.CheckByUserID(ctx, scheduleID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err = errors.New("Schedule doesn't exist")
		slog.Info(err.Error())
		return err
	}

	err = s.rr.Remove(ctx, scheduleID)
	if err != nil {
		return fmt.Errorf("Error removing schedule")
	}
	return nil
}
