package domain

import "time"

// Role 用户角色，按权限从低到高排列
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
)

var roleRank = map[Role]int{
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
	RoleSuperuser: 4,
}

// Valid 是否为已知角色
func (r Role) Valid() bool { _, ok := roleRank[r]; return ok }

// AtLeast 角色等级 >= other
func (r Role) AtLeast(other Role) bool { return roleRank[r] >= roleRank[other] }

// Roles 全部角色（校验 / CLI 提示用）
func Roles() []Role { return []Role{RoleUser, RoleModerator, RoleAdmin, RoleSuperuser} }

// ConfirmationState 邮箱确认状态
type ConfirmationState string

const (
	StatePending  ConfirmationState = "pending"
	StateVerified ConfirmationState = "verified"
)

// ReservedUsername 被 /users/me 占用
const ReservedUsername = "me"

type User struct {
	ID        uint              `gorm:"primaryKey"`
	Username  string            `gorm:"uniqueIndex;size:150;not null"`
	Email     string            `gorm:"uniqueIndex;size:254;not null"`
	FirstName string            `gorm:"size:150"`
	LastName  string            `gorm:"size:150"`
	Bio       string            `gorm:"type:text"`
	Role      Role              `gorm:"size:16;not null;default:user"`
	State     ConfirmationState `gorm:"size:16;not null;default:pending"`

	// 只存签发时间，不存验证码本身
	CodeIssuedAt *time.Time
	VerifiedAt   *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool { return u.Role.AtLeast(RoleAdmin) }
