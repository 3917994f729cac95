package tool

import "strings"

// MaskToken keeps the first 10 characters of a delivery token, the prefix
// clients already see in API responses.
func MaskToken(token string) string {
	if len(token) <= 10 {
		return "***"
	}
	return token[:10] + "..."
}

// MaskIdentity masks the local part of an e-mail style identity.
func MaskIdentity(identity string) string {
	at := strings.LastIndex(identity, "@")
	if at <= 0 {
		if len(identity) <= 2 {
			return strings.Repeat("*", len(identity))
		}
		return identity[:1] + strings.Repeat("*", len(identity)-2) + identity[len(identity)-1:]
	}
	local, domain := identity[:at], identity[at:]
	if len(local) <= 2 {
		return strings.Repeat("*", len(local)) + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + domain
}
