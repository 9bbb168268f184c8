package mail

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"neuralmail/pkg/core/config"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// imapClient go-imap 客户端中用到的方法
type imapClient interface {
	Login(username, password string) error
	Logout() error
	List(ref, name string, ch chan *imap.MailboxInfo) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	State() imap.ConnState
}

type dialFunc func(cfg Config) (imapClient, error)

// tlsDialer 通过 TLS 直连或经 SOCKS 代理连接 IMAP 服务器
func tlsDialer(proxy config.ProxyConfig, timeout time.Duration) dialFunc {
	return func(cfg Config) (imapClient, error) {
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		c, err := client.DialWithDialerTLS(proxy.GetDialer(), addr, &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12})
		if err != nil {
			return nil, err
		}
		c.Timeout = timeout
		return c, nil
	}
}

var fetchItems = []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, imap.FetchInternalDate}

// pageRange 倒序分页对应的序号区间，超出范围时 ok 为 false
func pageRange(total uint32, offset, limit int) (from, to uint32, ok bool) {
	if limit <= 0 || offset < 0 || uint32(offset) >= total {
		return 0, 0, false
	}
	to = total - uint32(offset)
	if uint32(limit) >= to {
		return 1, to, true
	}
	return to - uint32(limit) + 1, to, true
}

func toMessage(m *imap.Message) Message {
	msg := Message{ID: strconv.FormatUint(uint64(m.Uid), 10), Subject: "No Subject", Sender: "Unknown"}
	for _, f := range m.Flags {
		if f == imap.SeenFlag {
			msg.IsRead = true
		}
	}
	msg.Date = m.InternalDate

	env := m.Envelope
	if env == nil {
		return msg
	}
	if env.Subject != "" {
		msg.Subject = env.Subject
	}
	if !env.Date.IsZero() {
		msg.Date = env.Date
	}
	if len(env.From) > 0 && env.From[0] != nil {
		from := env.From[0]
		msg.SenderEmail = from.Address()
		switch {
		case from.PersonalName != "":
			msg.Sender = from.PersonalName
		case from.MailboxName != "":
			msg.Sender = from.MailboxName
		}
	}
	return msg
}

func toFolder(info *imap.MailboxInfo) Folder {
	name := info.Name
	if info.Delimiter != "" {
		if i := strings.LastIndex(name, info.Delimiter); i >= 0 {
			name = name[i+len(info.Delimiter):]
		}
	}
	return Folder{
		Path:        info.Name,
		DisplayName: name,
		Delimiter:   info.Delimiter,
		Attributes:  info.Attributes,
	}
}
