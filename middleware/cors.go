// Package middleware holds HTTP middleware shared by cmd/boot's debug and
// dashboard surfaces, adapted from control_plane/middleware/cors.go.
package middleware

import "net/http"

// CORS adds permissive CORS headers so the dashboard's websocket/JSON
// endpoints can be hit from a separately-served frontend during
// development.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
