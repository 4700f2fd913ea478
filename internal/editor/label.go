package editor

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/lewtec/demarcador/internal/domain"
)

const defaultPrefix = "DEF"

// Prefix is the auto-label prefix of a class: its configured prefix, or the
// first three letters of its name.
func Prefix(c domain.Class) string {
	if p := strings.TrimSpace(c.Prefix); p != "" {
		return strings.ToUpper(p)
	}
	var b strings.Builder
	n := 0
	for _, r := range c.Name {
		if !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if n++; n == 3 {
			break
		}
	}
	if n == 0 {
		return defaultPrefix
	}
	return b.String()
}

// nextLabel consumes the session counter.
func (s *Session) nextLabel() string {
	s.counter++
	return fmt.Sprintf("%s-%03d", Prefix(s.class), s.counter)
}
