package data

import (
	"context"
)

// Migration 按标识执行一次的建表语句
type Migration struct {
	Identifier string
	SQL        string
}

// Persistable 可持久化的记录，结构体字段通过 gorm column 标签映射到列
type Persistable interface {
	TableName() string
	// PrimaryKey 主键列名
	PrimaryKey() string
}

// Service 本地数据库服务
type Service interface {
	// RegisterMigration 注册迁移，相同标识只保留第一条；已连接时立即执行
	RegisterMigration(m Migration)
	// Connect 打开数据库并执行未完成的迁移，重复调用无副作用
	Connect(ctx context.Context) error
	// Save 按主键插入或覆盖
	Save(ctx context.Context, record Persistable) error
	// Fetch 按主键读取到 dst，记录不存在时返回 false
	Fetch(ctx context.Context, dst Persistable, id any) (bool, error)
	Delete(ctx context.Context, record Persistable, id any) error
	// Query 执行原始查询，每行为列名到值的映射
	Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
	Close() error
	IsConnected() bool
}
