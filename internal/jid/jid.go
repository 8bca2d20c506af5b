// Package jid handles the opaque chat and participant identifiers used
// across the host. Every component normalizes a JID before comparing or
// storing it; raw transport identifiers are never compared directly.
package jid

import (
	"errors"
	"strings"
	"unicode"
)

// GroupSuffix marks a group chat JID.
const GroupSuffix = "@g.us"

// ErrInvalid is returned when a raw identifier cannot be normalized.
var ErrInvalid = errors.New("invalid jid")

// Normalize canonicalizes a raw identifier: surrounding whitespace is
// trimmed, the result is lower-cased, and a device suffix (":<n>" before
// the "@") is stripped. Two JIDs are the same identity iff their
// normalized forms are equal.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalid
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", ErrInvalid
		}
	}
	s = strings.ToLower(s)

	// Strip the device part: "1234:12@s.whatsapp.net" -> "1234@s.whatsapp.net".
	user, server, hasServer := strings.Cut(s, "@")
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	if user == "" {
		return "", ErrInvalid
	}
	if !hasServer {
		return user, nil
	}
	if server == "" {
		return "", ErrInvalid
	}
	return user + "@" + server, nil
}

// IsGroup reports whether the normalized JID identifies a group chat.
func IsGroup(j string) bool {
	return strings.HasSuffix(j, GroupSuffix)
}

// Equal reports whether two raw identifiers refer to the same identity.
// Identifiers that fail to normalize are never equal to anything.
func Equal(a, b string) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}
