package middleware

import (
	"net"
	"net/http"
	"os"
	"strings"
)

// InternalOnly закрывает служебные эндпоинты рабочего пространства (/metrics).
// Пропускает loopback и частные сети, где живёт Prometheus, либо запрос
// с заголовком X-Metrics-Token, равным METRICS_TOKEN.
func InternalOnly(next http.Handler) http.Handler {
	token := strings.TrimSpace(os.Getenv("METRICS_TOKEN"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("X-Metrics-Token") == token {
			next.ServeHTTP(w, r)
			return
		}
		if ip := net.ParseIP(clientIP(r)); ip != nil && (ip.IsLoopback() || ip.IsPrivate()) {
			next.ServeHTTP(w, r)
			return
		}
		writeForbidden(w)
	})
}

// clientIP: адрес клиента с учётом прокси (X-Real-Ip, первый хоп X-Forwarded-For).
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
