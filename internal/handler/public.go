package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lumenflow/portal/internal/locale"
	"github.com/lumenflow/portal/internal/service"
	"github.com/lumenflow/portal/internal/ui"
)

// PageHandler describes the public pages: language, canonical URL and
// hreflang alternates. The imprint and privacy pages carry their text.
type PageHandler struct {
	legalService   *service.LegalService
	sitemapService *service.SitemapService
	baseURL        string
}

func NewPageHandler(legalService *service.LegalService, sitemapService *service.SitemapService, baseURL string) *PageHandler {
	return &PageHandler{
		legalService:   legalService,
		sitemapService: sitemapService,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
	}
}

type Alternate struct {
	Hreflang string `json:"hreflang"`
	Href     string `json:"href"`
}

type PageDescriptor struct {
	Page       locale.Page        `json:"page"`
	Lang       string             `json:"lang"`
	Path       string             `json:"path"`
	Canonical  string             `json:"canonical"`
	Alternates []Alternate        `json:"alternates"`
	Legal      *service.LegalPage `json:"legal,omitempty"`
}

var legalSlugs = map[locale.Page]string{
	locale.PageImpressum: "impressum",
	locale.PagePrivacy:   "privacy",
}

func (h *PageHandler) Page(w http.ResponseWriter, r *http.Request) {
	page, lang, ok := locale.Resolve(r.URL.Path)
	if !ok {
		notFound(w, r)
		return
	}

	path := locale.Path(page, lang)
	alternates := locale.Alternates(page)
	desc := &PageDescriptor{
		Page:      page,
		Lang:      lang,
		Path:      path,
		Canonical: h.baseURL + path,
		Alternates: []Alternate{
			{Hreflang: locale.EN, Href: h.baseURL + alternates[locale.EN]},
			{Hreflang: locale.DE, Href: h.baseURL + alternates[locale.DE]},
			{Hreflang: "x-default", Href: h.baseURL + alternates[locale.EN]},
		},
	}

	if slug, ok := legalSlugs[page]; ok {
		legal, err := h.legalService.Page(lang, slug)
		if errors.Is(err, service.ErrLegalPageNotFound) {
			notFound(w, r)
			return
		}
		if err != nil {
			loadFailed(w, r, err)
			return
		}
		desc.Legal = legal
	}

	w.Header().Set("Content-Language", lang)
	ui.JSON(w, http.StatusOK, desc)
}

func (h *PageHandler) Robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(h.sitemapService.Robots()))
}

// Sitemap generates and serves the sitemap.xml dynamically
func (h *PageHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	sitemap, err := h.sitemapService.GenerateSitemap()
	if err != nil {
		http.Error(w, "Failed to generate sitemap", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write(sitemap)
}
