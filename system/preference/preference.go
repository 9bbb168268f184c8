package preference

import (
	"context"
	"sync"

	"neuralmail/pkg/core/config"
	errorc "neuralmail/pkg/core/err"
	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/modular"
	"neuralmail/system/data"

	"golang.org/x/text/language"
)

const (
	keyLanguage = "nm_pref_language"
	keyTheme    = "nm_pref_theme"
)

// Migration 偏好表
var Migration = data.Migration{
	Identifier: "v1_create_preference",
	SQL:        "CREATE TABLE preference (name TEXT PRIMARY KEY NOT NULL, value TEXT NOT NULL)",
}

type entry struct {
	Name  string `gorm:"column:name;primaryKey"`
	Value string `gorm:"column:value"`
}

func (entry) TableName() string  { return "preference" }
func (entry) PrimaryKey() string { return "name" }

var matcher = func() language.Matcher {
	tags := make([]language.Tag, 0, len(Supported))
	for _, l := range Supported {
		tags = append(tags, language.MustParse(string(l)))
	}
	return language.NewMatcher(tags)
}()

// MatchLanguage 将系统首选语言匹配到支持的语言，无法匹配时返回 en
func MatchLanguage(preferred []string) Language {
	tags := make([]language.Tag, 0, len(preferred))
	for _, p := range preferred {
		if t, err := language.Parse(p); err == nil {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return LanguageEnglish
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return LanguageEnglish
	}
	return Supported[index]
}

type service struct {
	mu         sync.RWMutex
	lang       Language
	theme      Theme
	systemLang []string
	systemDark bool
	store      data.Service
	center     *modular.NotificationCenter
	log        *logger.Log
	err        *errorc.ErrorBuilder
}

func newService(cfg config.PreferenceConfig, center *modular.NotificationCenter, log *logger.Log) *service {
	theme := Theme(cfg.DefaultTheme)
	if !theme.Valid() {
		theme = ThemeSystem
	}
	return &service{
		lang:       LanguageSystem,
		theme:      theme,
		systemLang: append([]string(nil), cfg.SystemLanguages...),
		systemDark: cfg.SystemDark,
		center:     center,
		log:        log,
		err:        errorc.NewErrorBuilder("PreferenceService"),
	}
}

// attach 绑定数据服务，nil 时只保存在内存
func (s *service) attach(store data.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
}

// load 从数据库读取已保存的偏好，非法值忽略
func (s *service) load(ctx context.Context) error {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil || !store.IsConnected() {
		return nil
	}

	var lang, theme entry
	foundLang, err := store.Fetch(ctx, &lang, keyLanguage)
	if err != nil {
		return s.err.New("读取语言设置失败", err)
	}
	foundTheme, err := store.Fetch(ctx, &theme, keyTheme)
	if err != nil {
		return s.err.New("读取主题设置失败", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if foundLang && Language(lang.Value).Valid() {
		s.lang = Language(lang.Value)
	}
	if foundTheme && Theme(theme.Value).Valid() {
		s.theme = Theme(theme.Value)
	}
	return nil
}

func (s *service) Language() Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang
}

func (s *service) EffectiveLanguage() Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effectiveLanguage()
}

func (s *service) effectiveLanguage() Language {
	if s.lang == LanguageSystem {
		return MatchLanguage(s.systemLang)
	}
	return s.lang
}

func (s *service) Theme() Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

func (s *service) IsDarkTheme() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isDark()
}

func (s *service) isDark() bool {
	switch s.theme {
	case ThemeDark:
		return true
	case ThemeLight:
		return false
	default:
		return s.systemDark
	}
}

func (s *service) SetLanguage(lang Language) {
	if !lang.Valid() {
		s.log.WithField("language", lang).Warn("不支持的语言，忽略")
		return
	}

	s.mu.Lock()
	if s.lang == lang {
		s.mu.Unlock()
		return
	}
	old := s.effectiveLanguage()
	s.lang = lang
	changed := old != s.effectiveLanguage()
	s.mu.Unlock()

	s.log.WithField("language", lang).Info("切换语言")
	s.persist(keyLanguage, string(lang))
	if changed {
		s.notify(ChangedKeyLanguage)
	}
}

func (s *service) SetTheme(theme Theme) {
	if !theme.Valid() {
		s.log.WithField("theme", theme).Warn("不支持的主题，忽略")
		return
	}

	s.mu.Lock()
	if s.theme == theme {
		s.mu.Unlock()
		return
	}
	old := s.isDark()
	s.theme = theme
	changed := old != s.isDark()
	s.mu.Unlock()

	s.log.WithField("theme", theme).Info("切换主题")
	s.persist(keyTheme, string(theme))
	if changed {
		s.notify(ChangedKeyTheme)
	}
}

func (s *service) ApplyConfiguration() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.log.WithField("language", s.effectiveLanguage()).
		WithField("theme", s.theme).
		WithField("dark", s.isDark()).
		Info("应用偏好设置")
}

func (s *service) persist(name, value string) {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil || !store.IsConnected() {
		return
	}
	if err := store.Save(context.Background(), &entry{Name: name, Value: value}); err != nil {
		s.err.New("保存偏好设置失败", err).ToLog(s.log.GetLogger())
	}
}

func (s *service) notify(key string) {
	if s.center == nil {
		return
	}
	s.center.Post(modular.Notification{
		Name:     modular.PreferenceDidChange,
		Object:   s,
		UserInfo: map[string]any{"changedKey": key},
	})
}
