package ctxengine

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sori-ai/sori/pkg/message"
)

// Persona placeholders.
const (
	PlaceholderAge       = "{age}"
	PlaceholderInterests = "{interests}"
)

// DefaultPersona is used when no persona is configured or the persona file
// is missing or empty.
const DefaultPersona = `You are a warm and kind assistant for older adults.
Answer briefly and simply so the user can follow easily, and speak politely.
The user's age is {age}.
The user's interests are {interests}.
Tailor your answers to the user's age and interests.`

// PersonaSource provides the persona template.
type PersonaSource interface {
	Load() (string, error)
}

// StaticPersona is a fixed persona template.
type StaticPersona string

// Load implements PersonaSource.
func (p StaticPersona) Load() (string, error) {
	if strings.TrimSpace(string(p)) == "" {
		return DefaultPersona, nil
	}
	return string(p), nil
}

// PersonaFile loads the persona from a file and reloads it when the
// file's modification time changes.
type PersonaFile struct {
	path string

	mu      sync.RWMutex
	content string
	modTime time.Time
}

// NewPersonaFile creates a PersonaFile for path.
func NewPersonaFile(path string) *PersonaFile {
	return &PersonaFile{path: path}
}

// Load returns the current file content. A missing or empty file yields
// DefaultPersona without error.
func (p *PersonaFile) Load() (string, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.store("", time.Time{})
			return DefaultPersona, nil
		}
		return "", err
	}

	p.mu.RLock()
	if p.content != "" && p.modTime.Equal(info.ModTime()) {
		cached := p.content
		p.mu.RUnlock()
		return cached, nil
	}
	p.mu.RUnlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.store("", time.Time{})
			return DefaultPersona, nil
		}
		return "", err
	}

	content := strings.TrimSpace(string(data))
	p.store(content, info.ModTime())
	if content == "" {
		return DefaultPersona, nil
	}
	return content, nil
}

func (p *PersonaFile) store(content string, modTime time.Time) {
	p.mu.Lock()
	p.content = content
	p.modTime = modTime
	p.mu.Unlock()
}

// RenderPersona substitutes the profile into template. Unknown fields are
// replaced by unknown under AbsentSentinel; under AbsentOmit every line
// mentioning an unknown field is dropped.
func RenderPersona(template string, p message.Profile, policy AbsentPolicy, unknown string) string {
	age, interests := unknown, unknown
	if p.HasAge() {
		age = strconv.Itoa(*p.Age)
	}
	if p.HasInterests() {
		interests = strings.Join(p.Interests, ", ")
	}

	if policy == AbsentOmit {
		lines := strings.Split(template, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if !p.HasAge() && strings.Contains(line, PlaceholderAge) {
				continue
			}
			if !p.HasInterests() && strings.Contains(line, PlaceholderInterests) {
				continue
			}
			kept = append(kept, line)
		}
		template = strings.Join(kept, "\n")
	}

	return strings.NewReplacer(PlaceholderAge, age, PlaceholderInterests, interests).Replace(template)
}
