package annotation

import (
	"context"
	"embed"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/lewtec/demarcador/internal/domain"
)

//go:embed locales/*.json
var localesFS embed.FS

var (
	bundle        *i18n.Bundle
	defaultLocal  *i18n.Localizer
	currentLocale = "en"
	localeMu      sync.RWMutex
)

type localizerKey struct{}

func init() {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, locale := range []string{"en", "pt-BR"} {
		data, err := localesFS.ReadFile("locales/" + locale + ".json")
		if err != nil {
			panic(err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, locale+".json"); err != nil {
			panic(err)
		}
	}

	defaultLocal = i18n.NewLocalizer(bundle, currentLocale)
}

// SetLanguage sets the fallback language for translations
func SetLanguage(lang string) {
	localeMu.Lock()
	defer localeMu.Unlock()
	currentLocale = lang
	defaultLocal = i18n.NewLocalizer(bundle, currentLocale)
}

// GetLocalizerFromContext retrieves the localizer from context, or returns default
func GetLocalizerFromContext(ctx context.Context) *i18n.Localizer {
	if ctx != nil {
		if localizer, ok := ctx.Value(localizerKey{}).(*i18n.Localizer); ok {
			return localizer
		}
	}
	localeMu.RLock()
	defer localeMu.RUnlock()
	return defaultLocal
}

// WithLocalizer adds a localizer to the context
func WithLocalizer(ctx context.Context, localizer *i18n.Localizer) context.Context {
	return context.WithValue(ctx, localizerKey{}, localizer)
}

// GetLocalizerFromRequest creates a localizer based on the Accept-Language header
func GetLocalizerFromRequest(r *http.Request) *i18n.Localizer {
	// Format: "en-US,en;q=0.9,pt-BR;q=0.8,pt;q=0.7"
	var langs []string
	for _, part := range strings.Split(r.Header.Get("Accept-Language"), ",") {
		lang := strings.TrimSpace(strings.Split(part, ";")[0])
		if lang != "" {
			langs = append(langs, lang)
		}
	}

	localeMu.RLock()
	langs = append(langs, currentLocale)
	localeMu.RUnlock()

	return i18n.NewLocalizer(bundle, langs...)
}

// Localize translates a message with template data using the localizer
// from context. Unknown ids are returned as they are.
func Localize(ctx context.Context, messageID string, data map[string]any) string {
	msg, err := GetLocalizerFromContext(ctx).Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}

// Notice is a localized notice waiting to be shown.
type Notice struct {
	Level     domain.Level `json:"level"`
	MessageID string       `json:"id"`
	Message   string       `json:"message"`
}

// NoticeQueue is a domain.Notifier that localizes notices and keeps them
// until a client drains them. Only the newest notices are kept.
type NoticeQueue struct {
	mu      sync.Mutex
	notices []Notice
	limit   int
	logger  *zap.Logger
}

func NewNoticeQueue(limit int, logger *zap.Logger) *NoticeQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoticeQueue{limit: limit, logger: logger.Named("notice")}
}

func (q *NoticeQueue) Notify(ctx context.Context, n domain.Notice) {
	msg := Localize(ctx, n.MessageID, n.Data)
	q.logger.Debug(msg, zap.String("level", string(n.Level)), zap.String("id", n.MessageID))

	q.mu.Lock()
	defer q.mu.Unlock()
	q.notices = append(q.notices, Notice{Level: n.Level, MessageID: n.MessageID, Message: msg})
	if q.limit > 0 && len(q.notices) > q.limit {
		q.notices = q.notices[len(q.notices)-q.limit:]
	}
}

// Drain returns the pending notices and forgets them.
func (q *NoticeQueue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.notices
	q.notices = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

var _ domain.Notifier = (*NoticeQueue)(nil)
