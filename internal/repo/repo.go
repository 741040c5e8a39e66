package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"yamdb-api/internal/domain"
)

// notFound 把 gorm 的未找到统一成 domain.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// likeEscape 转义 LIKE 通配符，配合 ESCAPE '!'
func likeEscape(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func containsPattern(s string) string { return "%" + likeEscape(strings.ToLower(s)) + "%" }
func prefixPattern(s string) string   { return likeEscape(strings.ToLower(s)) + "%" }

// guarded 在保存点里执行写入。已处于事务中时（postgres 出错会中止整个事务）
// 回滚到保存点后外层事务仍可继续查询，冲突定位依赖这一点
func guarded(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}
