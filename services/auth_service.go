package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"kazi/apperrors"
	"kazi/gateway"
	"kazi/models"
	"kazi/repositories"
	"kazi/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

type LoginInput struct {
	// Identifier is an email address or a phone number.
	Identifier string
	Password   string
}

type AuthResult struct {
	Token     string       `json:"access_token"`
	ExpiresAt time.Time    `json:"access_expire"`
	User      *models.User `json:"user"`
}

type AuthService struct {
	users    *repositories.UserRepository
	guard    *LoginGuard
	tokenTTL time.Duration
	now      func() time.Time
}

func NewAuthService(users *repositories.UserRepository, guard *LoginGuard, tokenTTL time.Duration) *AuthService {
	if guard == nil {
		guard = NewLoginGuard(nil)
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{users: users, guard: guard, tokenTTL: tokenTTL, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		return nil, apperrors.Validation(apperrors.MsgInvalidName)
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !emailPattern.MatchString(email) {
		return nil, apperrors.Validation(apperrors.MsgInvalidEmail)
	}
	if len(in.Password) < 6 {
		return nil, apperrors.Validation(apperrors.MsgWeakPassword)
	}
	phone, err := gateway.NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if exists {
		return nil, apperrors.Conflict(apperrors.MsgAccountExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	user := &models.User{Name: name, Email: email, Phone: phone, Password: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateUser) {
			return nil, apperrors.Conflict(apperrors.MsgAccountExists)
		}
		return nil, apperrors.Internal(err)
	}
	zap.L().Info("user registered", zap.Uint("user_id", user.ID))
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.lookup(ctx, strings.TrimSpace(in.Identifier))
	if err != nil {
		return nil, err
	}
	if locked, _ := s.guard.Locked(ctx, user.ID); locked {
		return nil, apperrors.New(apperrors.KindAuthorization, apperrors.MsgAccountLocked)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		s.guard.RecordFailure(ctx, user.ID)
		return nil, apperrors.Unauthenticated(apperrors.MsgInvalidCredentials)
	}
	s.guard.Reset(ctx, user.ID)
	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.MsgUserNotFound)
	}
	return u, nil
}

func (s *AuthService) lookup(ctx context.Context, identifier string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.FindByEmail(ctx, strings.ToLower(identifier))
	} else {
		phone, perr := gateway.NormalizePhone(identifier)
		if perr != nil {
			return nil, apperrors.Unauthenticated(apperrors.MsgInvalidCredentials)
		}
		user, err = s.users.FindByPhone(ctx, phone)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Unauthenticated(apperrors.MsgInvalidCredentials)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := utils.GenerateAccessToken(user.ID, s.tokenTTL)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &AuthResult{Token: token, ExpiresAt: s.now().Add(s.tokenTTL).UTC(), User: user}, nil
}
