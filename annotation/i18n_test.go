package annotation

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lewtec/demarcador/internal/domain"
)

func TestLocalize_AcceptLanguage(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
	ctx := WithLocalizer(context.Background(), GetLocalizerFromRequest(r))

	got := Localize(ctx, domain.MsgImagesAdded, map[string]any{"Count": 2})
	if got != "2 imagem(ns) adicionada(s)." {
		t.Errorf("Localize() = %q", got)
	}

	if got := Localize(context.Background(), "NoSuchMessage", nil); got != "NoSuchMessage" {
		t.Errorf("Localize(unknown) = %q, want the id", got)
	}
}

func TestNoticeQueue(t *testing.T) {
	q := NewNoticeQueue(2, nil)
	ctx := context.Background()

	q.Notify(ctx, domain.Notice{Level: domain.LevelError, MessageID: domain.MsgFileTooLarge, Data: map[string]any{"Name": "a.png", "Size": "11 MiB", "Limit": "10 MiB"}})
	q.Notify(ctx, domain.Notice{Level: domain.LevelError, MessageID: domain.MsgFileBadExtension, Data: map[string]any{"Name": "notes.txt", "Extensions": "png"}})
	q.Notify(ctx, domain.Notice{Level: domain.LevelSuccess, MessageID: domain.MsgImagesAdded, Data: map[string]any{"Count": 1}})

	got := q.Drain()
	if len(got) != 2 {
		t.Fatalf("Drain() returned %d notices, want 2", len(got))
	}
	if !strings.HasPrefix(got[0].Message, "notes.txt was skipped") {
		t.Errorf("got[0].Message = %q", got[0].Message)
	}
	if got[1].Level != domain.LevelSuccess {
		t.Errorf("got[1].Level = %v, want success", got[1].Level)
	}
	if again := q.Drain(); len(again) != 0 {
		t.Errorf("second Drain() = %v, want empty", again)
	}
}

func TestEveryMessageIsTranslated(t *testing.T) {
	ids := []string{
		domain.MsgConfirmClassDelete, domain.MsgConfirmImageDelete, domain.MsgClassesInvalid,
		domain.MsgClassesSaved, domain.MsgClassesSaveFailed, domain.MsgClassDeleted,
		domain.MsgClassDeleteFailed, domain.MsgFileBadExtension, domain.MsgFileTooLarge,
		domain.MsgFileUnreadable, domain.MsgImagesAdded, domain.MsgImageDeleted,
		domain.MsgImageLoadFailed, domain.MsgImportFailed, domain.MsgImportDone,
		domain.MsgSessionSaved, domain.MsgSessionSaveFailed,
	}
	for _, lang := range []string{"en", "pt-BR"} {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Accept-Language", lang)
		ctx := WithLocalizer(context.Background(), GetLocalizerFromRequest(r))
		for _, id := range ids {
			if got := Localize(ctx, id, map[string]any{}); got == id {
				t.Errorf("%s: message %s is not translated", lang, id)
			}
		}
	}
}
