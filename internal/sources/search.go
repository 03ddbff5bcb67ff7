package sources

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/bighogz/form4-screener/internal/models"
	"github.com/rotisserie/eris"
)

// searchResponse is the subset of the EDGAR full-text search response used here.
type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

type searchHit struct {
	// ID is "{accession}:{file name}".
	ID     string `json:"_id"`
	Source struct {
		CIKs         []string `json:"ciks"`
		DisplayNames []string `json:"display_names"`
		FileDate     string   `json:"file_date"`
		Form         string   `json:"form"`
		ADSH         string   `json:"adsh"`
	} `json:"_source"`
}

// SearchAPI queries the structured full-text search endpoint for Form 4
// filings over the lookback window.
type SearchAPI struct {
	fetcher Fetcher
	opts    Options
}

func NewSearchAPI(f Fetcher, opts Options) *SearchAPI {
	return &SearchAPI{fetcher: f, opts: opts}
}

func (s *SearchAPI) Name() string { return "search" }

func (s *SearchAPI) URL() string {
	end := s.opts.asOf()
	start := end.AddDate(0, 0, -max(s.opts.LookbackDays-1, 0))
	q := url.Values{}
	q.Set("forms", formType)
	q.Set("dateRange", "custom")
	q.Set("startdt", start.Format("2006-01-02"))
	q.Set("enddt", end.Format("2006-01-02"))
	if s.opts.Limit > 0 {
		q.Set("size", strconv.Itoa(s.opts.Limit))
	}
	return s.opts.Endpoints.Search + "?" + q.Encode()
}

func (s *SearchAPI) List(ctx context.Context) ([]models.FilingReference, error) {
	body, err := s.fetcher.Get(ctx, s.URL())
	if err != nil {
		return nil, eris.Wrap(err, "sources: search")
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "sources: decode search response")
	}

	refs := make([]models.FilingReference, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		if f := strings.TrimSpace(h.Source.Form); f != "" && f != formType {
			continue
		}
		adsh, file, ok := strings.Cut(h.ID, ":")
		if !ok || file == "" || len(h.Source.CIKs) == 0 {
			continue
		}
		if h.Source.ADSH != "" {
			adsh = h.Source.ADSH
		}
		cik := strings.TrimLeft(h.Source.CIKs[0], "0")
		company := ""
		if len(h.Source.DisplayNames) > 0 {
			company = stripCIK(h.Source.DisplayNames[0])
		}
		refs = append(refs, models.FilingReference{
			Company: company,
			URL:     s.opts.Endpoints.Archive + "/Archives/edgar/data/" + cik + "/" + accessionPath(adsh) + "/" + file,
			Filed:   parseFiled(h.Source.FileDate),
			Form:    formType,
			CIK:     cik,
		})
	}
	return normalize(refs, s.opts.Limit), nil
}
