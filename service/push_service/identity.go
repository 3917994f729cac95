package push_service

import (
	"fleet-push-service/models"
	"regexp"
	"strings"
	"unicode"
)

const minTokenLength = 11

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	quoteStripper = strings.NewReplacer(`"`, "", `'`, "")
)

// NormalizeIdentity trims, strips stray quote characters and lower-cases an identity.
func NormalizeIdentity(raw string) string {
	return strings.ToLower(strings.TrimSpace(quoteStripper.Replace(strings.TrimSpace(raw))))
}

// ValidateIdentity checks an already normalized identity.
func ValidateIdentity(identity string) error {
	if len(identity) <= 3 || !emailPattern.MatchString(identity) {
		return validationError("invalid identity %q", identity)
	}
	return nil
}

// ValidateToken checks the minimum length and that the token is a single opaque word.
func ValidateToken(token string) error {
	if len(token) < minTokenLength {
		return validationError("token must be longer than %d characters", minTokenLength-1)
	}
	if strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return validationError("token must not contain whitespace")
	}
	return nil
}

// NormalizeSlot maps a missing device id to the default slot.
func NormalizeSlot(slot string) string {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return models.DefaultDeviceSlot
	}
	return slot
}
