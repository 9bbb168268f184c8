package applog

import (
	"bytes"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

// MemorySink 内存日志目标，按行保存 JSON 日志，测试和调试接口读取
type MemorySink struct {
	mu    sync.Mutex
	lines []string
	limit int
	buf   bytes.Buffer
}

// NewMemorySink limit 为保留的最大行数，<=0 不限制
func NewMemorySink(limit int) *MemorySink {
	return &MemorySink{limit: limit}
}

func (m *MemorySink) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf.Write(p)
	for {
		line, err := m.buf.ReadString('\n')
		if err != nil {
			// 不完整的行放回缓冲区
			m.buf.Reset()
			m.buf.WriteString(line)
			break
		}
		m.lines = append(m.lines, strings.TrimRight(line, "\n"))
	}
	if m.limit > 0 && len(m.lines) > m.limit {
		m.lines = m.lines[len(m.lines)-m.limit:]
	}
	return len(p), nil
}

func (m *MemorySink) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Entry 解析后的一行日志
type Entry struct {
	Level   string `json:"level"`
	Message string `json:"msg"`
	Tag     string `json:"tag"`
}

func (m *MemorySink) Entries() []Entry {
	lines := m.Lines()
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		var e Entry
		if err := jsoniter.ConfigFastest.UnmarshalFromString(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// Count 统计指定标签下消息完全相同的行数，tag 为空时不限标签
func (m *MemorySink) Count(tag, msg string) int {
	n := 0
	for _, e := range m.Entries() {
		if e.Message == msg && (tag == "" || e.Tag == tag) {
			n++
		}
	}
	return n
}

func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = nil
	m.buf.Reset()
}
