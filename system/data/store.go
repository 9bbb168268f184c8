package data

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"neuralmail/pkg/core/config"
	errorc "neuralmail/pkg/core/err"
	"neuralmail/pkg/core/logger"
	"neuralmail/system/data/internal/migrate"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// store 基于 gorm 的数据服务实现
type store struct {
	mu         sync.RWMutex
	cfg        config.Database
	proxy      config.ProxyConfig
	db         *gorm.DB
	migrations []Migration
	seen       map[string]struct{}
	log        *logger.Log
	err        *errorc.ErrorBuilder
}

func newStore(cfg config.Database, proxy config.ProxyConfig, log *logger.Log) *store {
	return &store{
		cfg:   cfg,
		proxy: proxy,
		seen:  make(map[string]struct{}),
		log:   log,
		err:   errorc.NewErrorBuilder("DataService"),
	}
}

func (s *store) RegisterMigration(m Migration) {
	s.mu.Lock()
	if _, ok := s.seen[m.Identifier]; ok {
		s.mu.Unlock()
		s.log.WithField("migration", m.Identifier).Debug("迁移已注册，忽略重复注册")
		return
	}
	s.seen[m.Identifier] = struct{}{}
	s.migrations = append(s.migrations, m)
	db := s.db
	s.mu.Unlock()

	if db == nil {
		return
	}
	if _, err := migrate.Apply(context.Background(), db, []migrate.Step{{ID: m.Identifier, SQL: m.SQL}}); err != nil {
		s.err.New("执行迁移失败", err).DB().ToLog(s.log.GetLogger())
		return
	}
	s.log.WithField("migration", m.Identifier).Info("迁移已执行")
}

func (s *store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	db, err := s.cfg.Open(s.proxy)
	if err != nil {
		return s.err.New("打开数据库失败", err).DB()
	}

	steps := make([]migrate.Step, 0, len(s.migrations))
	for _, m := range s.migrations {
		steps = append(steps, migrate.Step{ID: m.Identifier, SQL: m.SQL})
	}
	applied, err := migrate.Apply(ctx, db, steps)
	if err != nil {
		closeDB(db)
		return s.err.New("执行迁移失败", err).DB()
	}

	s.db = db
	s.log.WithField("dialect", s.cfg.Dialect).WithField("applied", applied).Info("数据库已连接")
	return nil
}

func (s *store) conn() (*gorm.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, s.err.New("数据库未连接", nil).NotConnected()
	}
	return s.db, nil
}

func pkEq(record Persistable, id any) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: record.PrimaryKey()}, Value: id}
}

func (s *store) Save(ctx context.Context, record Persistable) error {
	if record == nil {
		return s.err.BadRequest("保存的记录为空")
	}
	db, err := s.conn()
	if err != nil {
		return err
	}

	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: record.PrimaryKey()}},
		UpdateAll: true,
	}).Create(record).Error
	if err != nil {
		return s.err.New("保存记录失败", err).DB()
	}
	return nil
}

func (s *store) Fetch(ctx context.Context, dst Persistable, id any) (bool, error) {
	if dst == nil {
		return false, s.err.BadRequest("读取目标为空")
	}
	db, err := s.conn()
	if err != nil {
		return false, err
	}

	err = db.WithContext(ctx).Where(pkEq(dst, id)).Take(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.err.New("读取记录失败", err).DB()
	}
	return true, nil
}

func (s *store) Delete(ctx context.Context, record Persistable, id any) error {
	if record == nil {
		return s.err.BadRequest("删除的记录为空")
	}
	db, err := s.conn()
	if err != nil {
		return err
	}

	// 用同类型零值作为模型，避免 gorm 把 record 自身的主键追加到条件里
	model := reflect.New(reflect.Indirect(reflect.ValueOf(record)).Type()).Interface()
	if err := db.WithContext(ctx).Where(pkEq(record, id)).Delete(model).Error; err != nil {
		return s.err.New("删除记录失败", err).DB()
	}
	return nil
}

func (s *store) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, s.err.New("查询失败", err).DB()
	}
	return rows, nil
}

func (s *store) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()

	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
