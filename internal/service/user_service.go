package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/feedpulse/internal/cache"
	"github.com/d60-Lab/feedpulse/internal/model"
	"github.com/d60-Lab/feedpulse/internal/repository"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenNotFound      = errors.New("token not found or expired")
	ErrUserNotFound       = errors.New("user not found")
)

const (
	registrationTTL   = 24 * time.Hour
	forgotPasswordTTL = time.Hour
	sessionTTL        = 7 * 24 * time.Hour
)

// RegisterInput 注册入参（凭据先进令牌缓存，校验后才落库）
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Name     string
}

// UserService 账号生命周期：两段式注册、登录签发 JWT、找回密码、注销级联
type UserService interface {
	Register(ctx context.Context, input *RegisterInput) (token string, expiresAt time.Time, err error)
	VerifyRegistration(ctx context.Context, token string) (*model.User, error)
	Login(ctx context.Context, email, password string) (string, *model.User, error)
	ForgotPassword(ctx context.Context, email string) (string, time.Time, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	Profile(ctx context.Context, userID string) (*cache.Profile, error)
	UpdateProfileField(ctx context.Context, userID, field string, value interface{}) error
	DeleteAccount(ctx context.Context, userID string) error
}

type userService struct {
	userRepo     repository.UserRepository
	tokens       *cache.TokenCache
	profileCache *cache.ProfileCache
	rebuilder    *cache.Rebuilder
	jwtSecret    []byte
}

func NewUserService(userRepo repository.UserRepository, tokens *cache.TokenCache, profileCache *cache.ProfileCache, rebuilder *cache.Rebuilder, jwtSecret string) UserService {
	return &userService{
		userRepo:     userRepo,
		tokens:       tokens,
		profileCache: profileCache,
		rebuilder:    rebuilder,
		jwtSecret:    []byte(jwtSecret),
	}
}

// Register stashes hashed credentials behind a one-shot token. The account
// only exists after VerifyRegistration.
func (s *userService) Register(ctx context.Context, input *RegisterInput) (string, time.Time, error) {
	if existing, err := s.userRepo.GetByEmail(ctx, input.Email); err != nil {
		return "", time.Time{}, err
	} else if existing != nil {
		return "", time.Time{}, ErrEmailTaken
	}
	if existing, err := s.userRepo.GetByUsername(ctx, input.Username); err != nil {
		return "", time.Time{}, err
	} else if existing != nil {
		return "", time.Time{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.tokens.SetRegistration(ctx, map[string]string{
		"username": input.Username,
		"email":    input.Email,
		"password": string(hash),
		"name":     input.Name,
	}, registrationTTL)
}

func (s *userService) VerifyRegistration(ctx context.Context, token string) (*model.User, error) {
	pending, err := s.tokens.Registration(ctx, token)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, ErrTokenNotFound
	}

	user := &model.User{
		ID:       uuid.New().String(),
		Username: pending["username"],
		Email:    pending["email"],
		Password: pending["password"],
		Name:     pending["name"],
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.profileCache.CreateProfile(ctx, &cache.Profile{
		ID:       user.ID,
		Name:     user.Name,
		Username: user.Username,
	}); err != nil {
		return nil, err
	}
	if err := s.tokens.RemoveRegistration(ctx, token); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and signs a session token.
func (s *userService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, err
	}
	return signed, user, nil
}

func (s *userService) ForgotPassword(ctx context.Context, email string) (string, time.Time, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", time.Time{}, err
	}
	if user == nil {
		return "", time.Time{}, ErrUserNotFound
	}
	return s.tokens.SetForgotPassword(ctx, map[string]string{"user_id": user.ID}, forgotPasswordTTL)
}

func (s *userService) ResetPassword(ctx context.Context, token, newPassword string) error {
	pending, err := s.tokens.ForgotPassword(ctx, token)
	if err != nil {
		return err
	}
	if pending == nil {
		return ErrTokenNotFound
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, pending["user_id"], string(hash)); err != nil {
		return err
	}
	return s.tokens.RemoveForgotPassword(ctx, token)
}

func (s *userService) Profile(ctx context.Context, userID string) (*cache.Profile, error) {
	if err := s.rebuilder.EnsureProfile(ctx, userID); err != nil {
		return nil, err
	}
	p, err := s.profileCache.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrUserNotFound
	}
	return p, nil
}

func (s *userService) UpdateProfileField(ctx context.Context, userID, field string, value interface{}) error {
	return s.profileCache.UpdateProfileField(ctx, userID, field, value)
}

// DeleteAccount cascades through both stores: cache edges/timelines first,
// then the durable rows in one transaction.
func (s *userService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.profileCache.DeleteProfile(ctx, userID); err != nil {
		return err
	}
	return s.userRepo.Delete(ctx, userID)
}
