package preference

// Language 界面语言
type Language string

const (
	LanguageSystem             Language = "system"
	LanguageEnglish            Language = "en"
	LanguageChineseSimplified  Language = "zh-Hans"
	LanguageChineseTraditional Language = "zh-Hant"
)

// Supported 可选的具体语言，不含 system
var Supported = []Language{LanguageEnglish, LanguageChineseSimplified, LanguageChineseTraditional}

func (l Language) Valid() bool {
	switch l {
	case LanguageSystem, LanguageEnglish, LanguageChineseSimplified, LanguageChineseTraditional:
		return true
	}
	return false
}

// Theme 主题
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeSystem || t == ThemeLight || t == ThemeDark
}

// 变更通知 changedKey 取值
const (
	ChangedKeyLanguage = "language"
	ChangedKeyTheme    = "theme"
)

// Service 偏好设置服务
type Service interface {
	Language() Language
	// EffectiveLanguage 实际生效的语言，system 时按系统首选语言匹配
	EffectiveLanguage() Language
	Theme() Theme
	IsDarkTheme() bool
	SetLanguage(lang Language)
	SetTheme(theme Theme)
	// ApplyConfiguration 启动时应用已保存的主题
	ApplyConfiguration()
}
