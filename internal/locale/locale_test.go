package locale

import (
	"net/http/httptest"
	"testing"
)

func TestRedirect(t *testing.T) {
	tests := []struct {
		path   string
		target string
		ok     bool
	}{
		{"/de/contact", "/de/kontakt", true},
		{"/de/privacy", "/de/datenschutz", true},
		{"/de/ueber-uns", "/de/about", true},
		{"/de/ueber-uns/", "/de/about", true},
		{"/de/about", "", false},
		{"/de/kontakt", "", false},
		{"/contact", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			target, ok := Redirect(tt.path)
			if ok != tt.ok || target != tt.target {
				t.Errorf("Redirect(%q) = %q, %v; want %q, %v", tt.path, target, ok, tt.target, tt.ok)
			}
		})
	}
}

func TestCanonicalPathsNeverRedirect(t *testing.T) {
	for _, lang := range []string{EN, DE} {
		for _, page := range Pages {
			path := Path(page, lang)
			if _, ok := Redirect(path); ok {
				t.Errorf("canonical path %s redirects", path)
			}
			gotPage, gotLang, ok := Resolve(path)
			if !ok || gotPage != page || gotLang != lang {
				t.Errorf("Resolve(%s) = %s, %s, %v", path, gotPage, gotLang, ok)
			}
		}
	}
	for from, to := range LegacyPaths() {
		if _, _, ok := Resolve(from); ok {
			t.Errorf("legacy path %s must not resolve", from)
		}
		if _, _, ok := Resolve(to); !ok {
			t.Errorf("legacy target %s must be canonical", to)
		}
	}
}

func TestAlternates(t *testing.T) {
	alt := Alternates(PageContact)
	if alt[EN] != "/contact" || alt[DE] != "/de/kontakt" {
		t.Errorf("unexpected alternates %v", alt)
	}
	if Path(PagePrivacy, "fr") != "/privacy" {
		t.Error("unsupported language should fall back to English")
	}
}

func TestNegotiate(t *testing.T) {
	tests := map[string]string{
		"":                        EN,
		"de-DE,de;q=0.9,en;q=0.8": DE,
		"de-AT":                   DE,
		"fr-FR,en;q=0.5":          EN,
		"ja":                      EN,
		"en-US,en;q=0.9,de;q=0.8": EN,
		"gibberish;;q=":           EN,
	}
	for header, want := range tests {
		if got := Negotiate(header); got != want {
			t.Errorf("Negotiate(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/dashboard?lang=de", nil)
	if FromRequest(r) != DE {
		t.Error("query parameter should win")
	}

	r = httptest.NewRequest("GET", "/dashboard", nil)
	r.Header.Set("Accept-Language", "de")
	if FromRequest(r) != DE {
		t.Error("expected Accept-Language fallback")
	}

	if FromPath("/de/kontakt") != DE || FromPath("/dev") != EN || FromPath("/de") != DE {
		t.Error("unexpected FromPath result")
	}
}

func TestMessage(t *testing.T) {
	if Message(DE, "auth.invalid_credentials") != "E-Mail oder Passwort ist falsch." {
		t.Error("expected German message")
	}
	if Message("fr", "not_found") != "Not found." {
		t.Error("expected English fallback")
	}
	if Message(EN, "no.such.key") != "no.such.key" {
		t.Error("expected key fallback")
	}
	if Title(EN, "privacy policy") != "Privacy Policy" {
		t.Errorf("Title() = %q", Title(EN, "privacy policy"))
	}
}
