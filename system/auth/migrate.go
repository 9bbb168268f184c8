package auth

import "neuralmail/system/data"

// 认证模块的建表迁移
var (
	UserProfileMigration = data.Migration{
		Identifier: "v1_create_user_profile",
		SQL: `CREATE TABLE user_profile (
    id TEXT PRIMARY KEY NOT NULL,
    email TEXT NOT NULL,
    nickname TEXT,
    avatarURL TEXT
)`,
	}

	SessionMigration = data.Migration{
		Identifier: "v1_create_auth_session",
		SQL:        "CREATE TABLE auth_session (name TEXT PRIMARY KEY NOT NULL, value TEXT NOT NULL)",
	}
)

const (
	sessionKeyToken  = "nm_access_token"
	sessionKeyUserID = "current_user_id"
	// sessionKeyDevice 安装级别的设备标识，登出时保留
	sessionKeyDevice = "nm_device_id"
)

type sessionEntry struct {
	Name  string `gorm:"column:name;primaryKey"`
	Value string `gorm:"column:value"`
}

func (sessionEntry) TableName() string  { return "auth_session" }
func (sessionEntry) PrimaryKey() string { return "name" }
