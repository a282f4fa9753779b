package i18n

import (
	"embed"
	"encoding/json"
	"sync"

	"github.com/jeandeaual/go-locale"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

var (
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	mu        sync.RWMutex
	initOnce  sync.Once
)

// Init initializes the i18n bundle with the embedded locale files
func Init(lang string) {
	initOnce.Do(func() {
		bundle = i18n.NewBundle(language.English)
		bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

		// Load locale files - ignore errors for missing files
		bundle.LoadMessageFileFS(localeFS, "locales/en-us.json")
		bundle.LoadMessageFileFS(localeFS, "locales/ko-kr.json")
	})
	SetLocale(lang)
}

// T translates a message by its ID with optional template data and plural count
func T(messageID string, templateData map[string]interface{}, pluralCount ...int) string {
	mu.RLock()
	l := localizer
	mu.RUnlock()
	if l == nil {
		Init("en-US")
		mu.RLock()
		l = localizer
		mu.RUnlock()
	}

	config := &i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: templateData,
	}
	if len(pluralCount) > 0 {
		config.PluralCount = pluralCount[0]
	}

	msg, err := l.Localize(config)
	if err != nil {
		// Return message ID if translation fails
		return messageID
	}
	return msg
}

// SetLocale changes the current locale
func SetLocale(lang string) {
	if bundle == nil {
		Init(lang)
		return
	}
	mu.Lock()
	defer mu.Unlock()
	localizer = i18n.NewLocalizer(bundle, lang)
}

// Resolve returns the locale to use for a configured value. "auto" and ""
// detect the system locale, falling back to en-US.
func Resolve(configured string) string {
	if configured != "" && configured != "auto" {
		return configured
	}
	userLocale, err := locale.GetLocale()
	if err != nil || userLocale == "" {
		return "en-US"
	}
	return userLocale
}
