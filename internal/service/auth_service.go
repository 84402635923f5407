package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	config "github.com/maheshrc27/storysync/configs"
	"github.com/maheshrc27/storysync/internal/models"
	"github.com/maheshrc27/storysync/internal/repository"
	"github.com/maheshrc27/storysync/internal/transfer"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type AuthService interface {
	LoginCallback(ctx context.Context, code string) (int64, error)
}

type authService struct {
	cfg config.Config
	o   repository.OperatorRepository
}

func NewAuthService(cfg config.Config, o repository.OperatorRepository) AuthService {
	return &authService{
		cfg: cfg,
		o:   o,
	}
}

// LoginCallback exchanges the Google OAuth code and signs the
// operator in. Only allow-listed emails get an account; everyone
// else is rejected before any row is created.
func (s *authService) LoginCallback(ctx context.Context, code string) (int64, error) {
	if code == "" {
		err := errors.New("code or state is empty")
		slog.Info(err.Error())
		return 0, err
	}

	oauth2Config := &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  s.cfg.GoogleRedirectURI,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}

	if oauth2Config.ClientID == "" || oauth2Config.ClientSecret == "" {
		err := errors.New("OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return 0, err
	}

	token, err := oauth2Config.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	client := oauth2Config.Client(ctx, token)

	userInfo, err := getGoogleUserInfo(client)
	if err != nil {
		return 0, err
	}

	if !s.isAllowed(userInfo.Email) {
		err = fmt.Errorf("email %s is not an operator", userInfo.Email)
		slog.Info(err.Error())
		return 0, err
	}

	operator, isExist, err := s.o.GetByEmail(ctx, userInfo.Email)
	if err != nil {
		return 0, err
	}

	if isExist {
		return operator.ID, nil
	}

	operatorID, err := s.o.Create(ctx, &models.Operator{
		GoogleID:       userInfo.ID,
		Email:          userInfo.Email,
		Name:           userInfo.Name,
		ProfilePicture: userInfo.Picture,
	})
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return operatorID, nil
}

func (s *authService) isAllowed(email string) bool {
	for _, allowed := range s.cfg.OperatorEmails {
		if allowed == email {
			return true
		}
	}
	return false
}

func getGoogleUserInfo(client *http.Client) (*transfer.GoogleUserInfo, error) {
	userInfoURL := "https://www.googleapis.com/oauth2/v1/userinfo"

	response, err := client.Get(userInfoURL)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error fetching user info: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response status: %d", response.StatusCode)
	}

	var userInfo transfer.GoogleUserInfo
	if err := json.NewDecoder(response.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error decoding user info: %w", err)
	}

	return &userInfo, nil
}
