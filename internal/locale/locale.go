// Package locale maps the public pages onto their English and German paths
// and negotiates the language of a request.
package locale

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

const (
	EN = "en"
	DE = "de"
)

type Page string

const (
	PageHome      Page = "home"
	PageAbout     Page = "about"
	PageContact   Page = "contact"
	PageImpressum Page = "impressum"
	PagePrivacy   Page = "privacy"
)

// Pages in navigation order.
var Pages = []Page{PageHome, PageAbout, PageContact, PageImpressum, PagePrivacy}

var paths = map[string]map[Page]string{
	EN: {
		PageHome:      "/",
		PageAbout:     "/about",
		PageContact:   "/contact",
		PageImpressum: "/impressum",
		PagePrivacy:   "/privacy",
	},
	DE: {
		PageHome:      "/de",
		PageAbout:     "/de/about",
		PageContact:   "/de/kontakt",
		PageImpressum: "/de/impressum",
		PagePrivacy:   "/de/datenschutz",
	},
}

// legacy German slugs answer with a permanent redirect
var legacy = map[string]string{
	"/de/contact":   "/de/kontakt",
	"/de/privacy":   "/de/datenschutz",
	"/de/ueber-uns": "/de/about",
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.German})

// Path returns the canonical path of page in lang, falling back to English.
func Path(page Page, lang string) string {
	if p, ok := paths[lang][page]; ok {
		return p
	}
	return paths[EN][page]
}

// Resolve maps a canonical path to its page and language.
func Resolve(path string) (Page, string, bool) {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	for lang, pages := range paths {
		for page, p := range pages {
			if p == path {
				return page, lang, true
			}
		}
	}
	return "", "", false
}

// Redirect returns the canonical target of a legacy path.
func Redirect(path string) (string, bool) {
	target, ok := legacy[strings.TrimSuffix(path, "/")]
	return target, ok
}

// LegacyPaths lists every path that redirects.
func LegacyPaths() map[string]string {
	out := make(map[string]string, len(legacy))
	for from, to := range legacy {
		out[from] = to
	}
	return out
}

// Alternates returns the hreflang alternates of page keyed by language.
func Alternates(page Page) map[string]string {
	return map[string]string{
		EN: Path(page, EN),
		DE: Path(page, DE),
	}
}

// FromPath reports the language a path belongs to.
func FromPath(path string) string {
	if path == "/de" || strings.HasPrefix(path, "/de/") {
		return DE
	}
	return EN
}

// Negotiate picks the supported language closest to an Accept-Language header.
func Negotiate(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return EN
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return EN
	}
	if index == 1 {
		return DE
	}
	return EN
}

// Normalize returns lang when supported, else English.
func Normalize(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return EN
	}
	base, _ := tag.Base()
	if base.String() == DE {
		return DE
	}
	return EN
}

// FromRequest prefers an explicit lang query, then the profile cookie, then
// the Accept-Language header.
func FromRequest(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return Normalize(lang)
	}
	if c, err := r.Cookie("portal_lang"); err == nil && c.Value != "" {
		return Normalize(c.Value)
	}
	return Negotiate(r.Header.Get("Accept-Language"))
}
