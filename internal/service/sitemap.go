package service

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/lumenflow/portal/internal/locale"
	"github.com/lumenflow/portal/internal/model"
)

// Priorities and change frequencies of the public pages. Portal pages are
// behind the login and never listed.
var publicRoutes = map[locale.Page]struct {
	Priority   string
	ChangeFreq string
}{
	locale.PageHome:      {"1.0", "weekly"},
	locale.PageAbout:     {"0.8", "monthly"},
	locale.PageContact:   {"0.7", "monthly"},
	locale.PageImpressum: {"0.3", "yearly"},
	locale.PagePrivacy:   {"0.3", "yearly"},
}

type SitemapService struct {
	baseURL string
	now     func() time.Time
}

func NewSitemapService(baseURL string) *SitemapService {
	return &SitemapService{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}
}

// GenerateSitemap lists every public page in both languages, each entry
// carrying its hreflang alternates.
func (s *SitemapService) GenerateSitemap() ([]byte, error) {
	sitemap := model.Sitemap{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		XHTML: "http://www.w3.org/1999/xhtml",
		URLs:  []model.SitemapURL{},
	}

	today := s.now().Format("2006-01-02")
	for _, lang := range []string{locale.EN, locale.DE} {
		for _, page := range locale.Pages {
			route := publicRoutes[page]
			sitemap.URLs = append(sitemap.URLs, model.SitemapURL{
				Loc:        s.baseURL + locale.Path(page, lang),
				LastMod:    today,
				ChangeFreq: route.ChangeFreq,
				Priority:   route.Priority,
				Alternates: s.alternates(page),
			})
		}
	}

	output, err := xml.MarshalIndent(sitemap, "", "  ")
	if err != nil {
		return nil, err
	}

	result := xml.Header + string(output)
	return []byte(result), nil
}

func (s *SitemapService) alternates(page locale.Page) []model.SitemapAltLink {
	alt := locale.Alternates(page)
	return []model.SitemapAltLink{
		{Rel: "alternate", Hreflang: locale.EN, Href: s.baseURL + alt[locale.EN]},
		{Rel: "alternate", Hreflang: locale.DE, Href: s.baseURL + alt[locale.DE]},
		{Rel: "alternate", Hreflang: "x-default", Href: s.baseURL + alt[locale.EN]},
	}
}

// Robots returns robots.txt pointing crawlers at the sitemap and away from the portal.
func (s *SitemapService) Robots() string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	for _, p := range []string{"/dashboard", "/projects/", "/assets", "/knowledge", "/account", "/onboarding", "/auth/"} {
		b.WriteString("Disallow: " + p + "\n")
	}
	b.WriteString("\nSitemap: " + s.baseURL + "/sitemap.xml\n")
	return b.String()
}
