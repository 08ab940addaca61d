package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// PIILevel controls how much of the user's text reaches logs and spans.
type PIILevel string

const (
	// PIILevelNone drops user content entirely.
	PIILevelNone PIILevel = "none"
	// PIILevelHashed keeps text but replaces contacts with salted hashes.
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull logs content as is.
	PIILevelFull PIILevel = "full"
)

// ParsePIILevel maps a config value to a level, defaulting to hashed.
func ParsePIILevel(value string) PIILevel {
	switch PIILevel(strings.ToLower(strings.TrimSpace(value))) {
	case PIILevelNone:
		return PIILevelNone
	case PIILevelFull:
		return PIILevelFull
	default:
		return PIILevelHashed
	}
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().-]{8,}\d`)
)

// Sanitizer redacts contacts from user text before it is logged.
type Sanitizer struct {
	level PIILevel
	salt  string
}

func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	return &Sanitizer{level: level, salt: salt}
}

// Level reports the configured level.
func (s *Sanitizer) Level() PIILevel {
	return s.level
}

// Text sanitizes free-form user or model text.
func (s *Sanitizer) Text(input string) string {
	switch s.level {
	case PIILevelFull:
		return input
	case PIILevelNone:
		if input == "" {
			return ""
		}
		return "[REDACTED]"
	default:
		return s.hashContacts(input)
	}
}

// Contact sanitizes a value that is a contact in its entirety, such as an email or phone.
func (s *Sanitizer) Contact(contact string) string {
	if contact == "" {
		return ""
	}
	switch s.level {
	case PIILevelFull:
		return contact
	case PIILevelNone:
		return "[REDACTED]"
	default:
		return "[CONTACT:" + s.hash(contact) + "]"
	}
}

// UserID sanitizes a transport user identifier.
func (s *Sanitizer) UserID(userID string) string {
	if userID == "" || s.level == PIILevelFull {
		return userID
	}
	if s.level == PIILevelNone {
		return "[REDACTED]"
	}
	return s.hash(userID)
}

func (s *Sanitizer) hashContacts(input string) string {
	out := emailPattern.ReplaceAllStringFunc(input, func(match string) string {
		return fmt.Sprintf("[EMAIL:%s]", s.hash(match))
	})
	out = cardPattern.ReplaceAllString(out, "[CARD:REDACTED]")
	return phonePattern.ReplaceAllStringFunc(out, func(match string) string {
		return fmt.Sprintf("[PHONE:%s]", s.hash(match))
	})
}

func (s *Sanitizer) hash(value string) string {
	sum := sha256.Sum256([]byte(value + s.salt))
	return hex.EncodeToString(sum[:])[:8]
}
