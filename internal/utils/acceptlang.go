package utils

import (
	"strings"

	"golang.org/x/text/language"
)

// DetermineLocale resolves the locale for a request: an explicit query value
// first, then Accept-Language in preference order, then def, then the first
// supported locale. Regional variants match their base language ("zh-CN" ->
// "zh"). Supported values should be base codes like "en", "zh".
func DetermineLocale(queryLang, acceptLang string, supported []string, def string) string {
	names := make([]string, 0, len(supported))
	bases := make([]language.Base, 0, len(supported))
	for _, s := range supported {
		tag, err := language.Parse(s)
		if err != nil {
			continue
		}
		b, _ := tag.Base()
		names = append(names, strings.ToLower(s))
		bases = append(bases, b)
	}
	if len(names) == 0 {
		return "en"
	}

	pick := func(tag language.Tag) (string, bool) {
		b, conf := tag.Base()
		if conf == language.No {
			return "", false
		}
		for i, sb := range bases {
			if sb == b {
				return names[i], true
			}
		}
		return "", false
	}
	pickString := func(s string) (string, bool) {
		if strings.TrimSpace(s) == "" {
			return "", false
		}
		tag, err := language.Parse(s)
		if err != nil {
			return "", false
		}
		return pick(tag)
	}

	if v, ok := pickString(queryLang); ok {
		return v
	}
	// tags come back ordered by descending q
	if tags, qs, err := language.ParseAcceptLanguage(acceptLang); err == nil {
		for i, tag := range tags {
			if qs[i] <= 0 {
				continue
			}
			if v, ok := pick(tag); ok {
				return v
			}
		}
	}
	if v, ok := pickString(def); ok {
		return v
	}
	return names[0]
}
