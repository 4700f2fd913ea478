package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ClassID identifies a registry class. Zero means the class was never saved.
//
// It is written to JSON as a string and read back from either a string or a
// number.
type ClassID int64

func (id ClassID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id ClassID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *ClassID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*id = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*id = 0
			return nil
		}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("class id %s is not numeric", raw)
	}
	*id = ClassID(v)
	return nil
}

// Class is a defect category that shapes refer to.
type Class struct {
	ID     ClassID
	Name   string
	Color  string
	Prefix string
}

// Ref returns a reference to c carrying its current name.
func (c Class) Ref() ClassRef {
	return ClassRef{ID: c.ID, Name: c.Name}
}

// ClassRepository defines the storage operations behind the class registry
type ClassRepository interface {
	// List retrieves all classes ordered by id
	List(ctx context.Context) ([]Class, error)

	// Save inserts classes with a zero id and updates the others, returning
	// the list with ids assigned
	Save(ctx context.Context, classes []Class) ([]Class, error)

	// Delete removes a class by id
	Delete(ctx context.Context, id ClassID) error
}
