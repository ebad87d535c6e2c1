package repository

import (
	"context"
	"errors"
	"fmt"
	"planora_backend/internal/model"
	"planora_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// resourceTables 可共享资源对应的数据表
var resourceTables = map[model.ResourceKind]string{
	model.KindNote:     "notes",
	model.KindEvent:    "calendar_events",
	model.KindReminder: "reminders",
}

func tableOf(kind model.ResourceKind) (string, error) {
	table, ok := resourceTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown resource kind %q", kind)
	}
	return table, nil
}

// ShareRepository 三类资源共用一张共享表
type ShareRepository struct {
	DB *gorm.DB
}

func NewShareRepository(db *gorm.DB) *ShareRepository {
	return &ShareRepository{DB: db}
}

// PermissionFor 返回用户在资源上的授权，没有记录时返回 PermissionNone
func (r *ShareRepository) PermissionFor(ctx context.Context, kind model.ResourceKind, resourceID, userID uint) (model.Permission, error) {
	var grant model.ShareGrant
	err := r.DB.WithContext(ctx).
		Where("resource_kind = ? AND resource_id = ? AND user_id = ?", kind, resourceID, userID).
		Take(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.PermissionNone, nil
		}
		return model.PermissionNone, err
	}
	return grant.Permission, nil
}

// Upsert 新增或更新授权，同一事务内设置资源 is_shared = true
func (r *ShareRepository) Upsert(ctx context.Context, grant *model.ShareGrant) error {
	table, err := tableOf(grant.ResourceKind)
	if err != nil {
		return err
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "resource_kind"}, {Name: "resource_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"permission", "updated_at"}),
		}).Create(grant).Error
		if err != nil {
			return err
		}
		return tx.Table(table).Where("id = ?", grant.ResourceID).Update("is_shared", true).Error
	})
}

// Remove 删除授权并根据剩余授权数重算 is_shared
func (r *ShareRepository) Remove(ctx context.Context, kind model.ResourceKind, resourceID, userID uint) error {
	table, err := tableOf(kind)
	if err != nil {
		return err
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("resource_kind = ? AND resource_id = ? AND user_id = ?", kind, resourceID, userID).
			Delete(&model.ShareGrant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrNotFound
		}

		var remaining int64
		if err := tx.Model(&model.ShareGrant{}).
			Where("resource_kind = ? AND resource_id = ?", kind, resourceID).
			Count(&remaining).Error; err != nil {
			return err
		}
		return tx.Table(table).Where("id = ?", resourceID).Update("is_shared", remaining > 0).Error
	})
}

func (r *ShareRepository) List(ctx context.Context, kind model.ResourceKind, resourceID uint) ([]model.ShareGrant, error) {
	var grants []model.ShareGrant
	err := r.DB.WithContext(ctx).Preload("User").
		Where("resource_kind = ? AND resource_id = ?", kind, resourceID).
		Order("id ASC").
		Find(&grants).Error
	return grants, err
}

// deleteGrantsTx 删除资源时在同一事务内清理授权
func deleteGrantsTx(tx *gorm.DB, kind model.ResourceKind, resourceID uint) error {
	return tx.Where("resource_kind = ? AND resource_id = ?", kind, resourceID).Delete(&model.ShareGrant{}).Error
}

// sharedWith 共享给用户的资源 ID 子查询
func sharedWith(db *gorm.DB, kind model.ResourceKind, userID uint) *gorm.DB {
	return db.Model(&model.ShareGrant{}).Select("resource_id").
		Where("resource_kind = ? AND user_id = ?", kind, userID)
}
