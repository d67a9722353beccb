package model

import "encoding/xml"

type Sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	XHTML   string       `xml:"xmlns:xhtml,attr"`
	URLs    []SitemapURL `xml:"url"`
}

type SitemapURL struct {
	Loc        string           `xml:"loc"`
	LastMod    string           `xml:"lastmod,omitempty"`
	ChangeFreq string           `xml:"changefreq,omitempty"`
	Priority   string           `xml:"priority,omitempty"`
	Alternates []SitemapAltLink `xml:"xhtml:link"`
}

// SitemapAltLink is an hreflang alternate of a page.
type SitemapAltLink struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}
