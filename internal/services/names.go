package services

import (
	"strings"
	"unicode/utf8"

	"swarm-backend/internal/models"

	"golang.org/x/text/unicode/norm"
)

const maxNameRunes = 50

// NormalizeName trims and NFC-normalizes a swarm name and checks its length
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" || utf8.RuneCountInString(name) > maxNameRunes {
		return "", models.ErrInvalidName
	}
	return name, nil
}
