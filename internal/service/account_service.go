package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/transfer"
	"github.com/postloom/postloom/pkg/utils"
)

const maxXAccounts = 5

type XAccountService interface {
	Register(ctx context.Context, userID int64, ac *transfer.XAccountCreation) (*transfer.XAccountInfo, error)
	List(ctx context.Context, userID int64) ([]*transfer.XAccountInfo, error)
	SetDefault(ctx context.Context, userID, accountID int64) error
	Remove(ctx context.Context, userID, accountID int64) error
}

type xAccountService struct {
	cfg config.Config
	xa  repository.XAccountRepository
	x   XService
}

func NewXAccountService(cfg config.Config, xa repository.XAccountRepository, x XService) XAccountService {
	return &xAccountService{
		cfg: cfg,
		xa:  xa,
		x:   x,
	}
}

// Register verifies the credentials against the platform before storing
// them, so a bad key set is rejected up front instead of failing on the
// first scheduled post. The first account a user registers becomes the
// default.
func (s *xAccountService) Register(ctx context.Context, userID int64, ac *transfer.XAccountCreation) (*transfer.XAccountInfo, error) {
	if ac == nil {
		return nil, errors.New("account data is nil")
	}
	if ac.ApiKey == "" || ac.ApiSecret == "" || ac.AccessToken == "" || ac.AccessTokenSecret == "" {
		err := errors.New("all four credential fields are required")
		slog.Info(err.Error())
		return nil, err
	}

	count, err := s.xa.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count >= maxXAccounts {
		err = fmt.Errorf("at most %d accounts can be connected", maxXAccounts)
		slog.Info(err.Error())
		return nil, err
	}

	verification := s.x.Verify(ctx, XCredentials{
		ApiKey:            ac.ApiKey,
		ApiSecret:         ac.ApiSecret,
		AccessToken:       ac.AccessToken,
		AccessTokenSecret: ac.AccessTokenSecret,
	})
	if !verification.Valid {
		err = fmt.Errorf("credential verification failed: %s", verification.Error)
		slog.Info(err.Error())
		return nil, err
	}

	label := strings.TrimSpace(ac.Label)
	if label == "" {
		label = "@" + verification.Username
	}

	account := &models.XAccount{
		UserID:    userID,
		Label:     label,
		Username:  verification.Username,
		IsDefault: count == 0,
	}

	key := []byte(s.cfg.EncryptionKey)
	encrypted := make([]string, 0, 4)
	for _, plaintext := range []string{ac.ApiKey, ac.ApiSecret, ac.AccessToken, ac.AccessTokenSecret} {
		ciphertext, err := utils.Encrypt([]byte(plaintext), key)
		if err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("Error storing credentials")
		}
		encrypted = append(encrypted, ciphertext)
	}
	account.ApiKey = encrypted[0]
	account.ApiSecret = encrypted[1]
	account.AccessToken = encrypted[2]
	account.AccessTokenSecret = encrypted[3]

	accountID, err := s.xa.Create(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("Error saving account")
	}

	return &transfer.XAccountInfo{
		ID:        accountID,
		Label:     account.Label,
		Username:  account.Username,
		IsDefault: account.IsDefault,
	}, nil
}

func (s *xAccountService) List(ctx context.Context, userID int64) ([]*transfer.XAccountInfo, error) {
	accounts, err := s.xa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting accounts")
	}

	infos := make([]*transfer.XAccountInfo, 0, len(accounts))
	for _, account := range accounts {
		infos = append(infos, &transfer.XAccountInfo{
			ID:        account.ID,
			Label:     account.Label,
			Username:  account.Username,
			IsDefault: account.IsDefault,
		})
	}
	return infos, nil
}

func (s *xAccountService) SetDefault(ctx context.Context, userID, accountID int64) error {
	err := s.xa.SetDefault(ctx, userID, accountID)
	if err != nil {
		err = errors.New("Account doesn't exist")
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (s *xAccountService) Remove(ctx context.Context, userID, accountID int64) error {
	err := s.xa.Remove(ctx, userID, accountID)
	if err != nil {
		err = errors.New("Account doesn't exist")
		slog.Info(err.Error())
		return err
	}
	return nil
}
