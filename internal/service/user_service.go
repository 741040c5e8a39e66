package service

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"

	"yamdb-api/internal/domain"
	"yamdb-api/internal/repo"
)

// UserFields 管理员 / CLI 建用户
type UserFields struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Bio       string
	Role      domain.Role
}

func (f UserFields) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username, append([]validation.Rule{validation.Required}, usernameRules()...)...),
		validation.Field(&f.Email, append([]validation.Rule{validation.Required}, emailRules()...)...),
		validation.Field(&f.FirstName, validation.Length(0, 150)),
		validation.Field(&f.LastName, validation.Length(0, 150)),
		validation.Field(&f.Role, roleRule()),
	)
}

// UserPatch nil 字段不修改
type UserPatch struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Bio       *string
	Role      *domain.Role
}

func (p UserPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, append([]validation.Rule{validation.NilOrNotEmpty}, usernameRules()...)...),
		validation.Field(&p.Email, append([]validation.Rule{validation.NilOrNotEmpty}, emailRules()...)...),
		validation.Field(&p.FirstName, validation.Length(0, 150)),
		validation.Field(&p.LastName, validation.Length(0, 150)),
		validation.Field(&p.Role, validation.NilOrNotEmpty, roleRule()),
	)
}

type UserService struct{}

func NewUserService() *UserService { return &UserService{} }

func (s *UserService) Create(ctx context.Context, db *gorm.DB, f UserFields) (*domain.User, error) {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = normEmail(f.Email)
	if f.Role == "" {
		f.Role = domain.RoleUser
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	u := &domain.User{
		Username:  f.Username,
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Bio:       f.Bio,
		Role:      f.Role,
		State:     domain.StatePending,
	}
	if err := repo.NewUserRepo(db).Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Update allowRole=false 时忽略 Role（/users/me 用）
func (s *UserService) Update(ctx context.Context, db *gorm.DB, u *domain.User, p UserPatch, allowRole bool) error {
	if !allowRole {
		p.Role = nil
	}
	if p.Username != nil {
		v := strings.TrimSpace(*p.Username)
		p.Username = &v
	}
	if p.Email != nil {
		v := normEmail(*p.Email)
		p.Email = &v
	}
	if err := p.Validate(); err != nil {
		return err
	}

	var fields []string
	set := func(dst *string, v *string, col string) {
		if v != nil {
			*dst = *v
			fields = append(fields, col)
		}
	}
	set(&u.Username, p.Username, "username")
	set(&u.Email, p.Email, "email")
	set(&u.FirstName, p.FirstName, "first_name")
	set(&u.LastName, p.LastName, "last_name")
	set(&u.Bio, p.Bio, "bio")
	if p.Role != nil {
		u.Role = *p.Role
		fields = append(fields, "role")
	}
	return repo.NewUserRepo(db).Update(ctx, u, fields...)
}

// SetRole CLI 用
func (s *UserService) SetRole(ctx context.Context, db *gorm.DB, username string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, validation.Errors{"role": validation.NewError("validation_role", "unknown role")}
	}
	users := repo.NewUserRepo(db)
	u, err := users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	u.Role = role
	return u, users.Update(ctx, u, "role")
}
