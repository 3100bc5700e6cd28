package service

import (
	"errors"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

// FileNameSanitizer приводит имя файла к безопасному виду.
// Ошибка означает отказ: такое имя принять нельзя.
type FileNameSanitizer interface {
	Sanitize(fileName string) (string, error)
}

// SanitizerFunc позволяет использовать функцию как FileNameSanitizer
type SanitizerFunc func(fileName string) (string, error)

func (f SanitizerFunc) Sanitize(fileName string) (string, error) { return f(fileName) }

var unsafeFileNameChars = regexp.MustCompile(`[#/\\%?*:|"<>\x00-\x1f\x7f]`)

const maxFileNameLength = 255

// DefaultSanitizer заменяет служебные символы на дефис и отклоняет
// пустые, скрытые и слишком длинные имена
type DefaultSanitizer struct{}

func (DefaultSanitizer) Sanitize(fileName string) (string, error) {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(fileName, "\\", "/")))
	if !utf8.ValidString(name) {
		return "", errors.New("file name is not valid UTF-8")
	}
	name = unsafeFileNameChars.ReplaceAllString(name, "-")

	switch {
	case name == "" || name == "." || name == "/":
		return "", errors.New("file name is empty")
	case strings.HasPrefix(name, "."):
		return "", errors.New("hidden files are not allowed")
	case len(name) > maxFileNameLength:
		return "", errors.New("file name is too long")
	}
	return name, nil
}
