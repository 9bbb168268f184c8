package providers

import (
	_ "embed"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

//go:embed email_providers.json
var builtin []byte

// Security 连接加密方式：ssl、starttls、none
type Security string

const (
	SecuritySSL      Security = "ssl"
	SecurityStartTLS Security = "starttls"
	SecurityNone     Security = "none"
)

// ServerInfo 收发件服务器
type ServerInfo struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Security Security `json:"security"`
}

// Provider 邮件服务商配置
type Provider struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Domains     []string   `json:"domains"`
	Incoming    ServerInfo `json:"incoming"`
	Outgoing    ServerInfo `json:"outgoing"`
	SpecialNote string     `json:"special_note,omitempty"`
}

type document struct {
	Version   int        `json:"version"`
	Providers []Provider `json:"providers"`
}

// Catalog 服务商目录
type Catalog struct {
	version   int
	providers []Provider
	domains   []string
}

// Parse 解析服务商配置 JSON
func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var domains []string
	for i := range doc.Providers {
		p := &doc.Providers[i]
		for j, d := range p.Domains {
			d = strings.ToLower(strings.TrimSpace(d))
			p.Domains[j] = d
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			domains = append(domains, d)
		}
	}
	sort.Strings(domains)

	return &Catalog{version: doc.Version, providers: doc.Providers, domains: domains}, nil
}

// Builtin 内置的服务商目录
func Builtin() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic("内置邮件服务商配置损坏: " + err.Error())
	}
	return c
}

func (c *Catalog) Version() int { return c.version }

func (c *Catalog) Providers() []Provider {
	out := make([]Provider, len(c.providers))
	copy(out, c.providers)
	return out
}

// AllDomains 去重排序后的全部域名
func (c *Catalog) AllDomains() []string {
	out := make([]string, len(c.domains))
	copy(out, c.domains)
	return out
}

// FindProvider 按邮箱域名匹配服务商，不区分大小写
func (c *Catalog) FindProvider(email string) (Provider, bool) {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 || parts[1] == "" {
		return Provider{}, false
	}
	domain := strings.ToLower(parts[1])
	for _, p := range c.providers {
		for _, d := range p.Domains {
			if d == domain {
				return p, true
			}
		}
	}
	return Provider{}, false
}

// SuggestDomains 输入 "user@g" 时补全域名，返回完整邮箱
func (c *Catalog) SuggestDomains(input string, limit int) []string {
	at := strings.LastIndex(input, "@")
	if at <= 0 {
		return nil
	}
	local, prefix := input[:at], strings.ToLower(input[at+1:])

	var out []string
	for _, d := range c.domains {
		if strings.HasPrefix(d, prefix) && d != prefix {
			out = append(out, local+"@"+d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}
