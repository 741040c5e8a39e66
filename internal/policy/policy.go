// Package policy 是纯函数的鉴权矩阵：(actor, verb, resource) -> Allow/Deny。
// 不访问存储，不 panic；调用方负责把 Deny 翻译成 401/403。
package policy

import "yamdb-api/internal/domain"

type Verb string

const (
	Read   Verb = "read"
	Create Verb = "create"
	Update Verb = "update"
	Delete Verb = "delete"
)

type Kind string

const (
	KindTitle    Kind = "title"
	KindGenre    Kind = "genre"
	KindCategory Kind = "category"
	KindReview   Kind = "review"
	KindComment  Kind = "comment"
	KindUser     Kind = "user"
	KindMe       Kind = "me"
)

type Decision bool

const (
	Allow Decision = true
	Deny  Decision = false
)

// Actor 当前请求方；零值即匿名
type Actor struct {
	UserID        uint
	Username      string
	Role          domain.Role
	Authenticated bool
}

func Anonymous() Actor { return Actor{} }

// Resource 被访问的资源；Owned=false 表示集合级检查（作者未知）
type Resource struct {
	Kind     Kind
	AuthorID uint
	Owned    bool
}

func Collection(k Kind) Resource { return Resource{Kind: k} }

func Object(k Kind, authorID uint) Resource {
	return Resource{Kind: k, AuthorID: authorID, Owned: true}
}

// Level 访问门槛
type Level int

const (
	Nobody Level = iota
	Anyone
	Authenticated
	AuthorOrModerator
	Admin
)

// Rules 每种资源每个动作的门槛
type Rules map[Kind]map[Verb]Level

// Default 平台默认矩阵
var Default = Rules{
	KindTitle:    {Read: Anyone, Create: Admin, Update: Admin, Delete: Admin},
	KindGenre:    {Read: Anyone, Create: Admin, Update: Nobody, Delete: Admin},
	KindCategory: {Read: Anyone, Create: Admin, Update: Nobody, Delete: Admin},
	KindReview:   {Read: Anyone, Create: Authenticated, Update: AuthorOrModerator, Delete: AuthorOrModerator},
	KindComment:  {Read: Anyone, Create: Authenticated, Update: AuthorOrModerator, Delete: AuthorOrModerator},
	KindUser:     {Read: Admin, Create: Admin, Update: Admin, Delete: Admin},
	KindMe:       {Read: Authenticated, Create: Nobody, Update: Authenticated, Delete: Nobody},
}

// Authorize 按规则表判定；未登记的组合一律 Deny
func (rs Rules) Authorize(a Actor, v Verb, r Resource) Decision {
	lvl, ok := rs[r.Kind][v]
	if !ok {
		return Deny
	}
	return Decision(allowed(lvl, a, r))
}

func allowed(lvl Level, a Actor, r Resource) bool {
	switch lvl {
	case Anyone:
		return true
	case Authenticated:
		return a.Authenticated
	case AuthorOrModerator:
		if !a.Authenticated {
			return false
		}
		// 集合级检查放行，具体作者留给对象级检查
		if !r.Owned {
			return true
		}
		return a.UserID == r.AuthorID || a.Role.AtLeast(domain.RoleModerator)
	case Admin:
		return a.Authenticated && a.Role.AtLeast(domain.RoleAdmin)
	default:
		return false
	}
}

// Authorize 使用默认矩阵
func Authorize(a Actor, v Verb, r Resource) Decision { return Default.Authorize(a, v, r) }
