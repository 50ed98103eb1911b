package service

import (
	"context"
	"log/slog"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/pkg/utils"
)

// XCredentials is a decrypted OAuth 1.0a credential set ready to sign
// requests with. Never persisted in this form.
type XCredentials struct {
	ApiKey            string
	ApiSecret         string
	AccessToken       string
	AccessTokenSecret string
}

type ResolvedCredentials struct {
	// AccountID is 0 when the legacy per-user columns supplied the
	// credentials.
	AccountID   int64
	Credentials XCredentials
}

type CredentialService interface {
	// Resolve returns nil without error when no usable credentials
	// exist. A preferred account id that does not belong to the user
	// also resolves to nil; it is never silently replaced by another
	// account.
	Resolve(ctx context.Context, userID, preferredAccountID int64) (*ResolvedCredentials, error)
}

type credentialService struct {
	cfg config.Config
	xa  repository.XAccountRepository
	u   repository.UserRepository
}

func NewCredentialService(cfg config.Config, xa repository.XAccountRepository, u repository.UserRepository) CredentialService {
	return &credentialService{
		cfg: cfg,
		xa:  xa,
		u:   u,
	}
}

func (s *credentialService) Resolve(ctx context.Context, userID, preferredAccountID int64) (*ResolvedCredentials, error) {
	if preferredAccountID != 0 {
		account, isExist, err := s.xa.GetByUserAndID(ctx, preferredAccountID, userID)
		if err != nil {
			return nil, err
		}
		if !isExist {
			slog.Info("preferred account not found for user")
			return nil, nil
		}
		return s.fromAccount(account)
	}

	// Default account, then the earliest one, then the legacy columns.
	for _, lookup := range []func(context.Context, int64) (*models.XAccount, bool, error){
		s.xa.GetDefault,
		s.xa.GetEarliest,
	} {
		account, isExist, err := lookup(ctx, userID)
		if err != nil {
			return nil, err
		}
		if isExist {
			return s.fromAccount(account)
		}
	}

	return s.fromLegacyUser(ctx, userID)
}

func (s *credentialService) fromAccount(account *models.XAccount) (*ResolvedCredentials, error) {
	creds, err := s.decrypt(account.ApiKey, account.ApiSecret, account.AccessToken, account.AccessTokenSecret)
	if err != nil {
		return nil, err
	}
	return &ResolvedCredentials{AccountID: account.ID, Credentials: *creds}, nil
}

func (s *credentialService) fromLegacyUser(ctx context.Context, userID int64) (*ResolvedCredentials, error) {
	user, isExist, err := s.u.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !isExist {
		return nil, nil
	}

	if !user.XApiKey.Valid || !user.XApiSecret.Valid || !user.XAccessToken.Valid || !user.XAccessTokenSecret.Valid {
		return nil, nil
	}

	creds, err := s.decrypt(user.XApiKey.String, user.XApiSecret.String, user.XAccessToken.String, user.XAccessTokenSecret.String)
	if err != nil {
		return nil, err
	}
	return &ResolvedCredentials{AccountID: 0, Credentials: *creds}, nil
}

func (s *credentialService) decrypt(apiKey, apiSecret, accessToken, accessTokenSecret string) (*XCredentials, error) {
	key := []byte(s.cfg.EncryptionKey)

	decrypted := make([]string, 0, 4)
	for _, encrypted := range []string{apiKey, apiSecret, accessToken, accessTokenSecret} {
		plaintext, err := utils.Decrypt(encrypted, key)
		if err != nil {
			return nil, err
		}
		decrypted = append(decrypted, plaintext)
	}

	return &XCredentials{
		ApiKey:            decrypted[0],
		ApiSecret:         decrypted[1],
		AccessToken:       decrypted[2],
		AccessTokenSecret: decrypted[3],
	}, nil
}
