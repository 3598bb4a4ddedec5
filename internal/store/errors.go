package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Gopher0727/SocialSync/internal/apperr"
)

const pgUniqueViolation = "23505"

// Translate 把驱动错误转换为 apperr：记录不存在 -> NotFound，唯一约束冲突 -> AlreadyExists，其余 -> Store。
// 已经是 *apperr.Error 的错误原样返回。
func Translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.E(apperr.KindNotFound, op, "record not found", err)
	case IsUniqueViolation(err):
		return apperr.E(apperr.KindAlreadyExists, op, "already exists", err)
	default:
		return apperr.Store(op, err)
	}
}

func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}
