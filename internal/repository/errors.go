package repository

import (
	"errors"
	"planora_backend/internal/util"

	"gorm.io/gorm"
)

// translate 将 gorm 错误转换为业务层的哨兵错误
func translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return util.ErrConflict
	}
	return err
}
