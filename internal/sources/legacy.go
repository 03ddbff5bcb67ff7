package sources

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bighogz/form4-screener/internal/models"
	"github.com/rotisserie/eris"
)

// LegacyHTML scrapes the HTML "current filings" page. Rows look like
// form | company (linked to the filing index) | description | filed.
type LegacyHTML struct {
	fetcher Fetcher
	opts    Options
}

func NewLegacyHTML(f Fetcher, opts Options) *LegacyHTML {
	return &LegacyHTML{fetcher: f, opts: opts}
}

func (l *LegacyHTML) Name() string { return "html" }

func (l *LegacyHTML) URL() string {
	return currentURL(l.opts, false)
}

func (l *LegacyHTML) List(ctx context.Context) ([]models.FilingReference, error) {
	body, err := l.fetcher.Get(ctx, l.URL())
	if err != nil {
		return nil, eris.Wrap(err, "sources: legacy listing")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "sources: parse legacy listing")
	}

	refs := make([]models.FilingReference, 0)
	doc.Find("tr").Each(func(i int, row *goquery.Selection) {
		cols := row.Find("td")
		if cols.Length() < 4 {
			return
		}
		if strings.TrimSpace(cols.Eq(0).Text()) != formType {
			return
		}
		href, _ := cols.Eq(1).Find("a").First().Attr("href")
		refs = append(refs, models.FilingReference{
			Company: stripCIK(cols.Eq(1).Text()),
			URL:     absolute(l.opts.Endpoints.Archive, href),
			Filed:   parseFiled(cols.Eq(3).Text()),
			Form:    formType,
		})
	})
	return normalize(refs, l.opts.Limit), nil
}

// absolute resolves a site-relative link against base. Empty stays empty.
func absolute(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return strings.TrimRight(base, "/") + href
}
