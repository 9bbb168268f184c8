package mail

import (
	"context"
	"time"
)

// Protocol 收件协议
type Protocol string

const (
	ProtocolIMAP     Protocol = "imap"
	ProtocolPOP3     Protocol = "pop3"
	ProtocolExchange Protocol = "exchange"
)

// Config 邮箱账户连接参数
type Config struct {
	Email    string
	Host     string
	Port     int
	Username string
	Password string
	// Protocol 为空按 imap 处理，exchange 目前也走 IMAP
	Protocol Protocol
}

// Folder 邮件文件夹
type Folder struct {
	Path        string
	DisplayName string
	Delimiter   string
	Attributes  []string
}

// Message 邮件列表项，只含头部和标记
type Message struct {
	ID          string
	Subject     string
	Preview     string
	Sender      string
	SenderEmail string
	Date        time.Time
	IsRead      bool
}

// FolderStats 文件夹最近一次同步的统计
type FolderStats struct {
	Total    uint32
	Unseen   uint32
	LastSync time.Time
}

// Status 连接状态
type Status struct {
	Connected   bool
	Email       string
	Host        string
	LastError   string
	LastChecked time.Time
	Folders     map[string]FolderStats
}

// ClientService 邮件客户端服务
type ClientService interface {
	Connect(ctx context.Context, cfg Config) error
	FetchFolders(ctx context.Context) ([]Folder, error)
	// FetchMessages 按时间倒序分页，offset 从最新一封开始计数
	FetchMessages(ctx context.Context, folder string, offset, limit int) ([]Message, error)
	Disconnect()
	Status() Status
}
