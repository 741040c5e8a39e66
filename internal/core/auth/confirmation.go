package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// CodeSubject 参与验证码派生的用户状态（时间精度到毫秒，与各数据库存储精度对齐）。
// IssuedAt 变化（重新签发）或 VerifiedAt 变化（已兑换）都会让旧码失效。
type CodeSubject struct {
	UserID     uint
	Username   string
	Email      string
	IssuedAt   time.Time
	VerifiedAt *time.Time
}

// CodeGenerator 无状态验证码：HMAC(key, 用户身份 | 签发时间 | 兑换时间)，不落库
type CodeGenerator struct {
	key []byte
	TTL time.Duration
	Now func() time.Time
}

const codeLen = 20

// NewCodeGenerator 用 HKDF 从服务端密钥派生独立的验证码密钥，避免与 JWT 共用同一把 key
func NewCodeGenerator(secret []byte, ttl time.Duration) (*CodeGenerator, error) {
	if len(secret) == 0 {
		return nil, errors.New("confirmation: empty secret")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, secret, nil, []byte("yamdb confirmation code v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return &CodeGenerator{key: key, TTL: ttl, Now: time.Now}, nil
}

func (g *CodeGenerator) Make(s CodeSubject) string {
	mac := hmac.New(sha256.New, g.key)
	mac.Write([]byte(payload(s)))
	return hex.EncodeToString(mac.Sum(nil))[:codeLen]
}

// Check 常量时间比较 + 有效期检查
func (g *CodeGenerator) Check(s CodeSubject, code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != codeLen || s.IssuedAt.IsZero() {
		return false
	}
	if g.TTL > 0 && g.Now().Sub(s.IssuedAt) > g.TTL {
		return false
	}
	return hmac.Equal([]byte(g.Make(s)), []byte(code))
}

func payload(s CodeSubject) string {
	verified := ""
	if s.VerifiedAt != nil {
		verified = strconv.FormatInt(s.VerifiedAt.UTC().UnixMilli(), 10)
	}
	return strings.Join([]string{
		strconv.FormatUint(uint64(s.UserID), 10),
		s.Username,
		strings.ToLower(s.Email),
		strconv.FormatInt(s.IssuedAt.UTC().UnixMilli(), 10),
		verified,
	}, "|")
}
