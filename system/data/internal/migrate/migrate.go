package migrate

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Table 已执行迁移的记录表
const Table = "schema_migrations"

// Step 一条迁移
type Step struct {
	ID  string
	SQL string
}

type record struct {
	Identifier string    `gorm:"column:identifier;primaryKey"`
	AppliedAt  time.Time `gorm:"column:applied_at;not null"`
}

func (record) TableName() string { return Table }

// Ensure 创建迁移记录表
func Ensure(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&record{})
}

// Applied 判断迁移是否已执行
func Applied(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&record{}).Where("identifier = ?", id).Count(&n).Error
	return n > 0, err
}

// Apply 按顺序执行未执行过的迁移，每条迁移一个事务，返回本次执行的标识
func Apply(ctx context.Context, db *gorm.DB, steps []Step) ([]string, error) {
	if err := Ensure(ctx, db); err != nil {
		return nil, err
	}

	var done []string
	for _, step := range steps {
		applied, err := Applied(ctx, db, step.ID)
		if err != nil {
			return done, err
		}
		if applied {
			continue
		}

		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(step.SQL).Error; err != nil {
				return err
			}
			return tx.Create(&record{Identifier: step.ID, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return done, &StepError{ID: step.ID, Err: err}
		}
		done = append(done, step.ID)
	}
	return done, nil
}

// StepError 某条迁移执行失败
type StepError struct {
	ID  string
	Err error
}

func (e *StepError) Error() string {
	return "migration " + e.ID + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error { return e.Err }
