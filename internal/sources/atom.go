package sources

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bighogz/form4-screener/internal/models"
	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
)

// atomTitleRe matches "4 - ACME WIDGETS INC (0000320193) (Issuer)".
var atomTitleRe = regexp.MustCompile(`^\s*([^\s-][^-]*?)\s+-\s+(.+?)\s+\((\d+)\)\s*(?:\(([^)]*)\))?\s*$`)

// AtomFeed reads the "current filings" Atom feed. The feed carries one entry
// per filer role, so a filing shows up once for the issuer and once for each
// reporting owner; the issuer's name is preferred.
type AtomFeed struct {
	fetcher Fetcher
	opts    Options
}

func NewAtomFeed(f Fetcher, opts Options) *AtomFeed {
	return &AtomFeed{fetcher: f, opts: opts}
}

func (a *AtomFeed) Name() string { return "atom" }

func (a *AtomFeed) URL() string {
	return currentURL(a.opts, true)
}

func (a *AtomFeed) List(ctx context.Context) ([]models.FilingReference, error) {
	body, err := a.fetcher.Get(ctx, a.URL())
	if err != nil {
		return nil, eris.Wrap(err, "sources: atom")
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "sources: parse atom feed")
	}

	refs := make([]models.FilingReference, 0, len(feed.Items))
	issuers := make(map[string]models.FilingReference)
	for _, it := range feed.Items {
		m := atomTitleRe.FindStringSubmatch(it.Title)
		if m == nil || m[1] != formType {
			continue
		}
		ref := models.FilingReference{
			Company: strings.TrimSpace(m[2]),
			URL:     absolute(a.opts.Endpoints.Archive, it.Link),
			Form:    formType,
			CIK:     strings.TrimLeft(m[3], "0"),
			Filed:   itemTime(it),
		}
		if strings.EqualFold(m[4], "Issuer") {
			issuers[ref.URL] = ref
		}
		refs = append(refs, ref)
	}
	refs = normalize(refs, 0)
	for i, r := range refs {
		if iss, ok := issuers[r.URL]; ok {
			refs[i].Company, refs[i].CIK = iss.Company, iss.CIK
		}
	}
	return normalize(refs, a.opts.Limit), nil
}

// itemTime keeps the calendar date the feed reports, in the feed's own zone.
func itemTime(it *gofeed.Item) time.Time {
	t := it.UpdatedParsed
	if t == nil {
		t = it.PublishedParsed
	}
	if t == nil {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// currentURL builds the browse-edgar "current filings" query. The HTML
// listing and the Atom feed differ only in the output parameter.
func currentURL(opts Options, atom bool) string {
	q := url.Values{}
	q.Set("action", "getcurrent")
	q.Set("type", formType)
	q.Set("owner", "include")
	if opts.Limit > 0 {
		q.Set("count", strconv.Itoa(opts.Limit))
	}
	if atom {
		q.Set("output", "atom")
	}
	return opts.Endpoints.Current + "?" + q.Encode()
}
