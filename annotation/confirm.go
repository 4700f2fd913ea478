package annotation

import (
	"context"

	"github.com/lewtec/demarcador/internal/domain"
)

type confirmationKey struct{}

// WithConfirmation records whether destructive operations triggered under
// ctx were confirmed beforehand.
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmationKey{}, confirmed)
}

// ContextConfirmer answers confirmation prompts with the value stored by
// WithConfirmation. Without one, nothing is confirmed.
var ContextConfirmer domain.Confirmer = domain.ConfirmFunc(func(ctx context.Context, _ string, _ map[string]any) (bool, error) {
	confirmed, _ := ctx.Value(confirmationKey{}).(bool)
	return confirmed, nil
})
