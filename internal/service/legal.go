package service

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/lumenflow/portal/internal/locale"
	"github.com/lumenflow/portal/internal/markdown"
)

var ErrLegalPageNotFound = errors.New("legal page not found")

type LegalPage struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Lang        string `json:"lang"`
	Content     string `json:"content"`
	LastUpdated string `json:"last_updated"`
}

// LegalService renders the imprint and privacy pages from
// legal/<lang>/<slug>.md in fsys.
type LegalService struct {
	fsys   fs.FS
	parser *markdown.Parser
	reload bool

	mu    sync.Mutex
	pages map[string]*LegalPage
}

// NewLegalService serves pages from fsys. With reload set every request reads
// the files again, which is what development wants.
func NewLegalService(fsys fs.FS, reload bool) *LegalService {
	return &LegalService{
		fsys:   fsys,
		parser: markdown.NewParser(),
		reload: reload,
		pages:  make(map[string]*LegalPage),
	}
}

// Page returns the page in lang, falling back to English when no translation exists.
func (s *LegalService) Page(lang, slug string) (*LegalPage, error) {
	if strings.ContainsAny(slug, "/.") || slug == "" {
		return nil, ErrLegalPageNotFound
	}
	lang = locale.Normalize(lang)

	page, err := s.cached(lang, slug)
	if errors.Is(err, fs.ErrNotExist) && lang != locale.EN {
		page, err = s.cached(locale.EN, slug)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrLegalPageNotFound
	}
	return page, err
}

func (s *LegalService) cached(lang, slug string) (*LegalPage, error) {
	key := lang + "/" + slug

	s.mu.Lock()
	defer s.mu.Unlock()

	if page, ok := s.pages[key]; ok && !s.reload {
		return page, nil
	}
	page, err := s.loadPage(lang, slug)
	if err != nil {
		return nil, err
	}
	s.pages[key] = page
	return page, nil
}

func (s *LegalService) loadPage(lang, slug string) (*LegalPage, error) {
	filePath := path.Join("legal", lang, slug+".md")
	content, err := fs.ReadFile(s.fsys, filePath)
	if err != nil {
		return nil, err
	}

	html, meta, err := s.parser.ParseWithFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse markdown: %w", err)
	}

	title, _ := meta["title"].(string)
	if title == "" {
		title = locale.Title(lang, strings.ReplaceAll(slug, "-", " "))
	}

	var lastUpdated string
	if dateValue, ok := meta["lastUpdated"]; ok {
		lastUpdated = parseDate(dateValue, lang)
	}
	if lastUpdated == "" {
		info, err := fs.Stat(s.fsys, filePath)
		if err == nil && !info.ModTime().IsZero() {
			lastUpdated = formatDate(info.ModTime(), lang)
		}
	}

	return &LegalPage{
		Title:       title,
		Slug:        slug,
		Lang:        lang,
		Content:     string(html),
		LastUpdated: lastUpdated,
	}, nil
}

func formatDate(t time.Time, lang string) string {
	if lang == locale.DE {
		return t.Format("02.01.2006")
	}
	return t.Format("January 2, 2006")
}

// parseDate accepts the frontmatter date formats in use and returns the date
// formatted for lang.
func parseDate(value any, lang string) string {
	var dateStr string

	switch v := value.(type) {
	case string:
		dateStr = v
	case time.Time:
		return formatDate(v, lang)
	default:
		return ""
	}

	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"02.01.2006",
		"Jan 2, 2006",
		"January 2, 2006",
		time.RFC3339,
	}

	for _, format := range formats {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			return formatDate(t, lang)
		}
	}

	return dateStr
}
