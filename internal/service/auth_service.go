package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yamdb-api/internal/core/auth"
	"yamdb-api/internal/core/cooldown"
	"yamdb-api/internal/core/mail"
	"yamdb-api/internal/domain"
	"yamdb-api/internal/repo"
)

type SignupInput struct {
	Username string
	Email    string
}

func (in SignupInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, append([]validation.Rule{validation.Required}, usernameRules()...)...),
		validation.Field(&in.Email, append([]validation.Rule{validation.Required}, emailRules()...)...),
	)
}

// AuthService 注册发码 + 以码换令牌
type AuthService struct {
	codes    *auth.CodeGenerator
	jwt      *auth.JWTer
	mailer   mail.Sender
	cooldown cooldown.Limiter
	l        *zap.Logger
	now      func() time.Time
}

func NewAuthService(codes *auth.CodeGenerator, j *auth.JWTer, m mail.Sender, cd cooldown.Limiter, l *zap.Logger) *AuthService {
	if cd == nil {
		cd = cooldown.Nop{}
	}
	return &AuthService{codes: codes, jwt: j, mailer: m, cooldown: cd, l: l, now: time.Now}
}

// Signup 用户名 + 邮箱完全匹配已有用户时直接重新发码（不再校验）；
// 否则校验、建用户、发码。唯一约束冲突时再查一次完全匹配（并发的同一请求）。
func (s *AuthService) Signup(ctx context.Context, db *gorm.DB, in SignupInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normEmail(in.Email)
	users := repo.NewUserRepo(db)

	u, err := users.FindByPair(ctx, in.Username, in.Email)
	switch {
	case err == nil:
		if err := s.throttle(ctx, u.Email); err != nil {
			return nil, err
		}
		return u, s.reissue(ctx, users, u)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}

	issued := s.stamp()
	u = &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		Role:         domain.RoleUser,
		State:        domain.StatePending,
		CodeIssuedAt: &issued,
	}
	if err := users.Create(ctx, u); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		same, ferr := users.FindByPair(ctx, in.Username, in.Email)
		if ferr != nil {
			return nil, err
		}
		if err := s.throttle(ctx, same.Email); err != nil {
			return nil, err
		}
		return same, s.reissue(ctx, users, same)
	}
	// 冷却只在真正发码前占用，冲突的请求不消耗
	if err := s.throttle(ctx, u.Email); err != nil {
		return nil, err
	}
	return u, s.deliver(ctx, u)
}

// IssueToken 码不对或过期时不改任何数据
func (s *AuthService) IssueToken(ctx context.Context, db *gorm.DB, username, code string) (string, error) {
	q := db.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var u domain.User
	if err := q.First(&u, "username = ?", strings.TrimSpace(username)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	if u.CodeIssuedAt == nil || !s.codes.Check(subject(&u), code) {
		invalidCodes.Inc()
		return "", domain.ErrInvalidCode
	}

	now := s.stamp()
	u.VerifiedAt = &now
	u.State = domain.StateVerified
	if err := repo.NewUserRepo(db).Update(ctx, &u, "verified_at", "state"); err != nil {
		return "", err
	}
	tok, err := s.jwt.Issue(u.ID, u.Username, string(u.Role))
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	tokensIssued.Inc()
	s.l.Info("token issued", zap.Uint("uid", u.ID), zap.String("username", u.Username))
	return tok, nil
}

// reissue 刷新签发时间（旧码随之失效）并投递
func (s *AuthService) reissue(ctx context.Context, users *repo.UserRepo, u *domain.User) error {
	issued := s.stamp()
	u.CodeIssuedAt = &issued
	if err := users.Update(ctx, u, "code_issued_at"); err != nil {
		return err
	}
	return s.deliver(ctx, u)
}

func (s *AuthService) deliver(ctx context.Context, u *domain.User) error {
	code := s.codes.Make(subject(u))
	if err := s.mailer.SendConfirmationCode(ctx, u.Email, code); err != nil {
		return fmt.Errorf("deliver confirmation code: %w", err)
	}
	codesIssued.Inc()
	s.l.Info("confirmation code issued", zap.Uint("uid", u.ID), zap.String("username", u.Username))
	return nil
}

// throttle 冷却存储故障时放行，只记日志
func (s *AuthService) throttle(ctx context.Context, email string) error {
	ok, err := s.cooldown.Allow(ctx, email)
	if err != nil {
		s.l.Warn("cooldown store unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		return domain.ErrThrottled
	}
	return nil
}

// stamp 毫秒精度，和码的派生精度一致
func (s *AuthService) stamp() time.Time { return s.now().UTC().Truncate(time.Millisecond) }

func subject(u *domain.User) auth.CodeSubject {
	cs := auth.CodeSubject{
		UserID:     u.ID,
		Username:   u.Username,
		Email:      u.Email,
		VerifiedAt: u.VerifiedAt,
	}
	if u.CodeIssuedAt != nil {
		cs.IssuedAt = *u.CodeIssuedAt
	}
	return cs
}
