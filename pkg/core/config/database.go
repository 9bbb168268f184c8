package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DialectSqlite   = "sqlite"
	DialectMysql    = "mysql"
	DialectPostgres = "postgres"
)

// Database 本地数据库配置。客户端默认使用 sqlite 文件，mysql/postgres 用于联调环境
type Database struct {
	Dialect  string `yaml:"dialect" json:"dialect,omitempty"`
	Path     string `yaml:"path" json:"path,omitempty"`
	Host     string `yaml:"host" json:"host,omitempty"`
	Port     int64  `yaml:"port" json:"port,omitempty"`
	User     string `yaml:"user" json:"user,omitempty"`
	Password string `yaml:"password" json:"password,omitempty"`
	DbName   string `yaml:"db-name" json:"db-name,omitempty"`
	Verbose  bool   `yaml:"verbose" json:"verbose,omitempty"`
}

func DefaultDatabase() Database {
	return Database{
		Dialect: DialectSqlite,
		Path:    filepath.Join("data", "NeuralMail.sqlite"),
	}
}

// Open 按方言打开数据库
func (d Database) Open(proxyConfig ProxyConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if d.Verbose {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	switch d.Dialect {
	case DialectMysql:
		return InitMysql(d, proxyConfig, gormConfig)
	case DialectPostgres:
		return InitPg(d, gormConfig)
	case DialectSqlite, "":
		return InitSqlite(d, gormConfig)
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s", d.Dialect)
	}
}

func InitSqlite(database Database, config *gorm.Config) (*gorm.DB, error) {
	path := database.Path
	if path == "" {
		path = DefaultDatabase().Path
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), config)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite 单写者，内存库每个连接都是独立的库
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}
	return db, nil
}

func InitPg(database Database, config *gorm.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable password=%s",
		database.Host, database.Port, database.User, database.DbName, database.Password)

	db, err := gorm.Open(postgres.Open(dsn), config)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func InitMysql(database Database, proxyConfig ProxyConfig, config *gorm.Config) (*gorm.DB, error) {
	network := "tcp"

	if proxyConfig.Enabled {
		network = fmt.Sprintf("proxy_%d", time.Now().UnixNano())
		dialer := proxyConfig.GetDialer()

		mysqldriver.RegisterDialContext(network, func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.Dial("tcp", addr)
		})
	}

	dsn := fmt.Sprintf("%s:%s@%s(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		database.User, database.Password, network, database.Host, database.Port, database.DbName)

	return gorm.Open(mysql.Open(dsn), config)
}
