package httpapi

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// buildAllowedHosts returns the set of Host header values legitimate
// for this server. Defends against DNS rebinding, where an attacker's
// domain resolves to 127.0.0.1 and the browser sends that domain as
// the Host header.
func buildAllowedHosts(host string, port int) map[string]bool {
	hosts := make(map[string]bool)
	add := func(h string) {
		hosts[net.JoinHostPort(h, strconv.Itoa(port))] = true
	}
	add(host)
	switch host {
	case "127.0.0.1":
		add("localhost")
	case "localhost":
		add("127.0.0.1")
	case "0.0.0.0", "::":
		add("127.0.0.1")
		add("localhost")
		add("::1")
	case "::1":
		add("127.0.0.1")
		add("localhost")
	}
	return hosts
}

func httpOrigin(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// buildAllowedOrigins returns the origins permitted by CORS. Loopback
// addresses admit both "127.0.0.1" and "localhost" since browsers
// treat them as distinct origins.
func buildAllowedOrigins(host string, port int) map[string]bool {
	origins := make(map[string]bool)
	add := func(h string) { origins[httpOrigin(h, port)] = true }
	add(host)
	switch host {
	case "127.0.0.1":
		add("localhost")
	case "localhost":
		add("127.0.0.1")
	case "0.0.0.0", "::":
		add("127.0.0.1")
		add("localhost")
		add("::1")
	case "::1":
		add("127.0.0.1")
		add("localhost")
	}
	return origins
}

func isBindAll(host string) bool {
	return host == "0.0.0.0" || host == "::"
}

// hostCheckMiddleware rejects requests whose Host header isn't one of
// the expected values, skipped entirely when bound to all interfaces
// since LAN clients then connect via the machine's real address.
func (s *Server) hostCheckMiddleware(next http.Handler) http.Handler {
	allowed := buildAllowedHosts(s.cfg.Host, s.cfg.Port)
	bindAll := isBindAll(s.cfg.Host)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && !bindAll {
			if !allowed[r.Host] {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := buildAllowedOrigins(s.cfg.Host, s.cfg.Port)
	bindAll := isBindAll(s.cfg.Host)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		originAllowed := allowedOrigins[origin] || (bindAll && origin != "")
		safeForReads := origin == "" || originAllowed

		if originAllowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			if !safeForReads {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !originAllowed && isMutating(r.Method) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Printf("%s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
