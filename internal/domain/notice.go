package domain

import "context"

// Level is the severity of a notice shown to the user.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a non-blocking message for the user. MessageID selects a
// localized text, Data fills its template.
type Notice struct {
	Level     Level
	MessageID string
	Data      map[string]any
}

// Notifier surfaces notices to the user (toast, alert, log line...).
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Confirmer asks the user to confirm a destructive operation.
type Confirmer interface {
	Confirm(ctx context.Context, messageID string, data map[string]any) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, messageID string, data map[string]any) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, messageID string, data map[string]any) (bool, error) {
	return f(ctx, messageID, data)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(ctx context.Context, n Notice)

func (f NotifyFunc) Notify(ctx context.Context, n Notice) {
	f(ctx, n)
}

// Discard drops every notice.
var Discard Notifier = NotifyFunc(func(context.Context, Notice) {})

// Message ids of the notices and confirmations raised by the core.
const (
	MsgConfirmClassDelete = "ConfirmClassDelete"
	MsgConfirmImageDelete = "ConfirmImageDelete"
	MsgClassesInvalid     = "ClassesInvalid"
	MsgClassesSaved       = "ClassesSaved"
	MsgClassesSaveFailed  = "ClassesSaveFailed"
	MsgClassDeleted       = "ClassDeleted"
	MsgClassDeleteFailed  = "ClassDeleteFailed"
	MsgFileBadExtension   = "FileBadExtension"
	MsgFileTooLarge       = "FileTooLarge"
	MsgFileUnreadable     = "FileUnreadable"
	MsgImagesAdded        = "ImagesAdded"
	MsgImageDeleted       = "ImageDeleted"
	MsgImageLoadFailed    = "ImageLoadFailed"
	MsgImportFailed       = "ImportFailed"
	MsgImportDone         = "ImportDone"
	MsgSessionSaved       = "SessionSaved"
	MsgSessionSaveFailed  = "SessionSaveFailed"
)
