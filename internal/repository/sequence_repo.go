package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"opencampus/backend/internal/model"
)

// SequenceRepository 编号序列数据访问接口
type SequenceRepository interface {
	// Next 取下一个编号并自增计数器；序列未配置时返回 gorm.ErrRecordNotFound
	Next(ctx context.Context, code string) (string, error)
}

type sequenceRepo struct {
	db *gorm.DB
}

// NewSequenceRepo 创建 SequenceRepository 实例
func NewSequenceRepo(db *gorm.DB) SequenceRepository {
	return &sequenceRepo{db: db}
}

// Next 在事务内锁定计数器行，保证并发取号不重复
func (r *sequenceRepo) Next(ctx context.Context, code string) (string, error) {
	var value string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq model.Sequence
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).
			First(&seq).Error; err != nil {
			return err
		}

		value = seq.Format(seq.NextNumber)

		return tx.Model(&seq).
			Where("sequence_id = ?", seq.SequenceID).
			Update("next_number", gorm.Expr("next_number + 1")).Error
	})
	if err != nil {
		return "", err
	}
	return value, nil
}
