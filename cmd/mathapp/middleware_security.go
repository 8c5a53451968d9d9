package main

import "net/http"

var securityHeaders = [][2]string{
	{"X-XSS-Protection", "1; mode=block"},
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
}

// securityHeadersMiddleware sets the fixed anti-sniffing, anti-framing and
// XSS headers before anything else can write the response.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range securityHeaders {
			w.Header().Set(h[0], h[1])
		}
		next.ServeHTTP(w, r)
	})
}
