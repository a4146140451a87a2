// Package i18n loads the sign-in message catalog and picks a locale from Accept-Language.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

// Bundle is a flattened key → message catalog per locale.
type Bundle struct {
	dict     map[string]map[string]string
	fallback string
	tags     []language.Tag
	names    []string
	matcher  language.Matcher
}

// Default loads the embedded catalog with the given fallback locale.
func Default(fallback string) (*Bundle, error) {
	return Load(embedded, "locales", fallback)
}

// Load reads every <locale>.yaml in dir. Nested YAML maps are flattened into
// dotted keys, so login.error.generic addresses login → error → generic.
func Load(fsys fs.FS, dir, fallback string) (*Bundle, error) {
	fallback = strings.ToLower(strings.TrimSpace(fallback))
	if fallback == "" {
		fallback = "en"
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read %s: %w", dir, err)
	}

	b := &Bundle{dict: map[string]map[string]string{}, fallback: fallback}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".yaml" {
			continue
		}
		locale := strings.ToLower(strings.TrimSuffix(entry.Name(), ".yaml"))
		raw, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", entry.Name(), err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("i18n: unmarshal %s: %w", entry.Name(), err)
		}
		flat := map[string]string{}
		flatten("", tree, flat)
		b.dict[locale] = flat
	}
	if _, ok := b.dict[fallback]; !ok {
		return nil, fmt.Errorf("i18n: fallback locale %s not loaded", fallback)
	}

	// The fallback goes first so the matcher prefers it when nothing matches.
	b.names = append(b.names, fallback)
	for locale := range b.dict {
		if locale != fallback {
			b.names = append(b.names, locale)
		}
	}
	sort.Strings(b.names[1:])
	for _, name := range b.names {
		tag, err := language.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("i18n: invalid locale %q: %w", name, err)
		}
		b.tags = append(b.tags, tag)
	}
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(full, v, out)
		case string:
			out[full] = v
		case nil:
		default:
			out[full] = fmt.Sprint(v)
		}
	}
}

// Fallback returns the configured fallback locale.
func (b *Bundle) Fallback() string { return b.fallback }

// Resolve picks the best supported locale for an Accept-Language header value.
func (b *Bundle) Resolve(acceptLanguage string) string {
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return b.fallback
	}
	_, idx, confidence := b.matcher.Match(prefs...)
	if confidence == language.No {
		return b.fallback
	}
	return b.names[idx]
}

// T returns the message for key in locale, falling back to the fallback locale and then the key itself.
func (b *Bundle) T(locale, key string) string {
	if m, ok := b.dict[strings.ToLower(locale)]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := b.dict[b.fallback][key]; ok {
		return v
	}
	return key
}
