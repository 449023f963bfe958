package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"pengu-backend/internal/middleware"
	"pengu-backend/internal/models"
)

type fakeRepo struct {
	users   map[string]*models.User // by id
	byEmail map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*models.User), byEmail: make(map[string]string)}
}

func (f *fakeRepo) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	if _, ok := f.byEmail[u.Email]; ok {
		return nil, models.ErrEmailTaken
	}
	cp := *u
	cp.ID = fmt.Sprintf("user-%d", len(f.users)+1)
	f.users[cp.ID] = &cp
	f.byEmail[cp.Email] = cp.ID
	out := cp
	return &out, nil
}

func (f *fakeRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return f.FindByID(ctx, id)
}

func (f *fakeRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) EmailForUser(ctx context.Context, id string) (string, error) {
	u, err := f.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

const testSecret = "test-secret"

func TestSignupIssuesToken(t *testing.T) {
	svc := NewService(newFakeRepo(), testSecret)

	resp, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "ada@example.com",
		Password: "correct horse",
		Name:     "Ada",
		Role:     models.RoleStudent,
	})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if resp.User.Role != models.RoleStudent {
		t.Errorf("role = %s; want %s", resp.User.Role, models.RoleStudent)
	}
	if resp.User.PasswordHash == "correct horse" {
		t.Error("password stored in clear")
	}

	claims := &middleware.Claims{}
	_, err = jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	if err != nil {
		t.Fatalf("token does not parse: %v", err)
	}
	if claims.UserID != resp.User.ID || claims.Role != models.RoleStudent {
		t.Errorf("claims = %+v; want user %s with role %s", claims, resp.User.ID, models.RoleStudent)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc := NewService(newFakeRepo(), testSecret)
	ctx := context.Background()
	in := models.SignupRequest{Email: "ada@example.com", Password: "correct horse", Name: "Ada", Role: models.RoleStudent}

	if _, err := svc.Signup(ctx, in); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	_, err := svc.Signup(ctx, in)
	if !errors.Is(err, models.ErrEmailTaken) {
		t.Errorf("error = %v; want ErrEmailTaken", err)
	}
}

func TestLogin(t *testing.T) {
	svc := NewService(newFakeRepo(), testSecret)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, models.SignupRequest{Email: "ada@example.com", Password: "correct horse", Name: "Ada", Role: models.RoleExpert}); err != nil {
		t.Fatal(err)
	}

	resp, err := svc.Login(ctx, models.LoginRequest{Email: "ada@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.Token == "" {
		t.Error("Login returned empty token")
	}

	// Wrong password and unknown email come back indistinguishable.
	_, err = svc.Login(ctx, models.LoginRequest{Email: "ada@example.com", Password: "wrong"})
	if !errors.Is(err, models.ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v; want ErrInvalidCredentials", err)
	}
	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "correct horse"})
	if !errors.Is(err, models.ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v; want ErrInvalidCredentials", err)
	}
}
