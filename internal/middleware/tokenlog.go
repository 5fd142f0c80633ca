package middleware

import "strings"

// MaskToken оставляет от токена входа первые 8 символов (префикс UUID).
func MaskToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= 8 {
		return "[token]"
	}
	return token[:8] + "…"
}
