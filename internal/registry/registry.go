// Package registry keeps the list of annotation classes that shapes refer to.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/lewtec/demarcador/internal/domain"
)

var ErrIndexOutOfRange = errors.New("class index out of range")

// ValidationError describes why the entry at Index cannot be saved.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("class %d: %s", e.Index+1, e.Reason)
}

// SaveFunc persists the whole list and returns it with ids assigned.
type SaveFunc func(ctx context.Context, classes []domain.Class) ([]domain.Class, error)

type Options struct {
	// Store is used to delete persisted classes and, when OnSave is nil, to
	// save the list.
	Store     domain.ClassRepository
	OnSave    SaveFunc
	Confirmer domain.Confirmer
	Notifier  domain.Notifier
	Logger    *zap.Logger
}

// Registry is the editable class list. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	classes []domain.Class
	errs    map[int]string
	opts    Options
	logger  *zap.Logger
}

func New(opts Options) *Registry {
	if opts.Notifier == nil {
		opts.Notifier = domain.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		errs:   map[int]string{},
		opts:   opts,
		logger: logger.Named("registry"),
	}
}

// Load replaces the list, e.g. with what the class service returned.
func (r *Registry) Load(classes []domain.Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = append([]domain.Class(nil), classes...)
	clear(r.errs)
}

// Classes returns a copy of the list.
func (r *Registry) Classes() []domain.Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Class(nil), r.classes...)
}

// Errors returns the validation messages of the last save, by index.
func (r *Registry) Errors() map[int]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]string, len(r.errs))
	for k, v := range r.errs {
		out[k] = v
	}
	return out
}

// Resolve finds a saved class by id.
func (r *Registry) Resolve(id domain.ClassID) (domain.Class, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 {
		return domain.Class{}, false
	}
	for _, c := range r.classes {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Class{}, false
}

// AddBlank appends an unsaved, unnamed class and returns its index.
func (r *Registry) AddBlank() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = append(r.classes, domain.Class{})
	return len(r.classes) - 1
}

// Rename sets the name at index and clears the error recorded for it.
func (r *Registry) Rename(index int, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.classes) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	r.classes[index].Name = name
	delete(r.errs, index)
	return nil
}

// Style sets the palette color and label prefix at index.
func (r *Registry) Style(index int, color, prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.classes) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	r.classes[index].Color = color
	r.classes[index].Prefix = prefix
	return nil
}

// Remove deletes the class at index after the user confirms. A persisted
// class is deleted from the store first; when that fails the list is left
// as it was. It reports whether the class was removed.
func (r *Registry) Remove(ctx context.Context, index int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.classes) {
		return false, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	c := r.classes[index]

	if r.opts.Confirmer != nil {
		ok, err := r.opts.Confirmer.Confirm(ctx, domain.MsgConfirmClassDelete, map[string]any{"Name": c.Name})
		if err != nil {
			return false, fmt.Errorf("while confirming class removal: %w", err)
		}
		if !ok {
			return false, nil
		}
	}

	if c.ID != 0 && r.opts.Store != nil {
		if err := r.opts.Store.Delete(ctx, c.ID); err != nil {
			r.logger.Error("class delete failed", zap.Stringer("id", c.ID), zap.Error(err))
			r.opts.Notifier.Notify(ctx, domain.Notice{
				Level:     domain.LevelError,
				MessageID: domain.MsgClassDeleteFailed,
				Data:      map[string]any{"Name": c.Name},
			})
			return false, fmt.Errorf("while deleting class %s: %w", c.ID, err)
		}
	}

	r.classes = append(r.classes[:index], r.classes[index+1:]...)
	r.shiftErrors(index)
	r.opts.Notifier.Notify(ctx, domain.Notice{
		Level:     domain.LevelSuccess,
		MessageID: domain.MsgClassDeleted,
		Data:      map[string]any{"Name": c.Name},
	})
	return true, nil
}

func (r *Registry) shiftErrors(removed int) {
	next := make(map[int]string, len(r.errs))
	for i, msg := range r.errs {
		switch {
		case i < removed:
			next[i] = msg
		case i > removed:
			next[i-1] = msg
		}
	}
	r.errs = next
}

// Validate checks every entry and returns all problems at once.
func Validate(classes []domain.Class) error {
	var result *multierror.Error
	for i, c := range classes {
		switch {
		case strings.TrimSpace(c.Name) == "":
			result = multierror.Append(result, &ValidationError{Index: i, Reason: "name is required"})
		case c.ID < 0:
			result = multierror.Append(result, &ValidationError{Index: i, Reason: "id must not be negative"})
		}
	}
	return result.ErrorOrNil()
}

// Save validates the whole list and persists it. Nothing is persisted
// when any entry is invalid; every invalid entry gets an error message.
func (r *Registry) Save(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.errs)
	if err := Validate(r.classes); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				var verr *ValidationError
				if errors.As(e, &verr) {
					r.errs[verr.Index] = verr.Reason
				}
			}
		}
		r.opts.Notifier.Notify(ctx, domain.Notice{
			Level:     domain.LevelError,
			MessageID: domain.MsgClassesInvalid,
			Data:      map[string]any{"Count": len(r.errs)},
		})
		return err
	}

	save := r.opts.OnSave
	if save == nil && r.opts.Store != nil {
		save = r.opts.Store.Save
	}
	saved := append([]domain.Class(nil), r.classes...)
	if save != nil {
		var err error
		saved, err = save(ctx, append([]domain.Class(nil), r.classes...))
		if err != nil {
			r.logger.Error("class save failed", zap.Error(err))
			r.opts.Notifier.Notify(ctx, domain.Notice{Level: domain.LevelError, MessageID: domain.MsgClassesSaveFailed})
			return fmt.Errorf("while saving classes: %w", err)
		}
	}
	r.classes = saved
	r.logger.Info("classes saved", zap.Int("count", len(saved)))
	r.opts.Notifier.Notify(ctx, domain.Notice{
		Level:     domain.LevelSuccess,
		MessageID: domain.MsgClassesSaved,
		Data:      map[string]any{"Count": len(saved)},
	})
	return nil
}
