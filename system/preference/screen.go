package preference

// LanguageOption 语言选择列表的一项
type LanguageOption struct {
	Language Language
	Title    string
	Subtitle string
	Selected bool
}

var selectionOrder = []Language{LanguageSystem, LanguageChineseSimplified, LanguageChineseTraditional, LanguageEnglish}

// DisplayName 语言名称；"跟随系统" 按当前语言显示
func DisplayName(l, current Language) string {
	switch l {
	case LanguageEnglish:
		return "English"
	case LanguageChineseSimplified:
		return "简体中文"
	case LanguageChineseTraditional:
		return "繁體中文"
	}
	switch current {
	case LanguageEnglish:
		return "Follow System"
	case LanguageChineseTraditional:
		return "跟隨系統"
	default:
		return "跟随系统"
	}
}

func subtitle(l Language) string {
	switch l {
	case LanguageEnglish:
		return "English"
	case LanguageChineseSimplified:
		return "Simplified Chinese"
	case LanguageChineseTraditional:
		return "Traditional Chinese"
	default:
		return "System Default"
	}
}

// LanguageSelectionScreen 语言选择界面，确认后写回偏好服务
type LanguageSelectionScreen struct {
	svc      Service
	selected Language
}

func NewLanguageSelectionScreen(svc Service) *LanguageSelectionScreen {
	return &LanguageSelectionScreen{svc: svc, selected: svc.Language()}
}

func (s *LanguageSelectionScreen) ScreenName() string { return "LanguageSelection" }

func (s *LanguageSelectionScreen) Options() []LanguageOption {
	current := s.svc.Language()
	out := make([]LanguageOption, 0, len(selectionOrder))
	for _, l := range selectionOrder {
		out = append(out, LanguageOption{
			Language: l,
			Title:    DisplayName(l, current),
			Subtitle: subtitle(l),
			Selected: l == s.selected,
		})
	}
	return out
}

// Select 只改变待确认的选项
func (s *LanguageSelectionScreen) Select(l Language) {
	if l.Valid() {
		s.selected = l
	}
}

func (s *LanguageSelectionScreen) Confirm() {
	s.svc.SetLanguage(s.selected)
}
