package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"pengu-backend/internal/middleware"
	"pengu-backend/internal/models"
)

const tokenTTL = 72 * time.Hour

// ServiceInterface defines the contract for the auth service.
type ServiceInterface interface {
	Signup(ctx context.Context, in models.SignupRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, in models.LoginRequest) (*models.AuthResponse, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

// Service implements the ServiceInterface.
type Service struct {
	repo      RepositoryInterface
	jwtSecret []byte
}

// NewService creates a new auth service.
func NewService(repo RepositoryInterface, jwtSecret string) *Service {
	return &Service{repo: repo, jwtSecret: []byte(jwtSecret)}
}

// Signup registers a student or expert account and logs it in. Expert
// accounts still need a profile via the expert module before they can take
// orders.
func (s *Service) Signup(ctx context.Context, in models.SignupRequest) (*models.AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("service.Signup: hash: %w", err)
	}

	u, err := s.repo.CreateUser(ctx, &models.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
		Role:         in.Role,
	})
	if err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return nil, models.ErrEmailTaken
		}
		return nil, fmt.Errorf("service.Signup: %w", err)
	}
	return s.issue(u)
}

// Login verifies credentials and issues a JWT.
func (s *Service) Login(ctx context.Context, in models.LoginRequest) (*models.AuthResponse, error) {
	u, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service.Login: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return nil, models.ErrInvalidCredentials
	}
	return s.issue(u)
}

// Me retrieves the authenticated user's account.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service.Me: %w", err)
	}
	return u, nil
}

func (s *Service) issue(u *models.User) (*models.AuthResponse, error) {
	now := time.Now()
	claims := &middleware.Claims{
		UserID: u.ID,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("service.issue: sign: %w", err)
	}
	return &models.AuthResponse{Token: token, User: u}, nil
}
