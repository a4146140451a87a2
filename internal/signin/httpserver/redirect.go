package httpserver

import (
	"net/url"
	"path"
	"strings"
)

// normalizeCallback accepts same-origin relative targets under the base path
// and never points back at the sign-in route itself.
func (h *handlers) normalizeCallback(raw string) string {
	sanitized := sanitizeCallbackTarget(h.paths.base, raw)
	if sanitized == "" {
		return ""
	}
	if hasSafePrefix(pathOnly(sanitized), h.paths.login) {
		return ""
	}
	return sanitized
}

func (h *handlers) redirectTarget(candidates ...string) string {
	for _, c := range candidates {
		if target := h.normalizeCallback(c); target != "" {
			return target
		}
	}
	return h.paths.base
}

// loginURL builds the sign-in URL with extra query parameters. Empty values are skipped.
func (h *handlers) loginURL(params map[string]string) string {
	parsed, err := url.Parse(h.paths.login)
	if err != nil {
		return h.paths.login
	}
	q := parsed.Query()
	for key, val := range params {
		if strings.TrimSpace(val) == "" {
			continue
		}
		q.Set(key, val)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func sanitizeCallbackTarget(basePath, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" || parsed.Host != "" || parsed.User != nil {
		return ""
	}

	pathValue := parsed.Path
	if pathValue == "" {
		pathValue = "/"
	}

	unescaped, err := url.PathUnescape(pathValue)
	if err != nil {
		return ""
	}
	if strings.Contains(unescaped, "\\") {
		return ""
	}

	cleaned := path.Clean(unescaped)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	if strings.HasPrefix(cleaned, "//") {
		return ""
	}

	base := normalizeBase(basePath)
	if base != "/" && !hasSafePrefix(cleaned, base) {
		return ""
	}

	target := cleaned
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		target += "#" + parsed.Fragment
	}
	return target
}

func hasSafePrefix(pathValue, base string) bool {
	if base == "/" {
		return strings.HasPrefix(pathValue, "/")
	}
	if !strings.HasPrefix(pathValue, base) {
		return false
	}
	if len(pathValue) == len(base) {
		return true
	}
	return pathValue[len(base)] == '/'
}

func pathOnly(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Path
}
