package sources

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bighogz/form4-screener/internal/httpclient"
	"github.com/bighogz/form4-screener/internal/models"
	"github.com/rotisserie/eris"
)

// DailyIndex reads the pipe-separated master index EDGAR publishes per
// business day, walking back from AsOf until a day with Form 4 rows turns
// up. Weekends and holidays have no file and answer 404.
type DailyIndex struct {
	fetcher Fetcher
	opts    Options
}

func NewDailyIndex(f Fetcher, opts Options) *DailyIndex {
	return &DailyIndex{fetcher: f, opts: opts}
}

func (d *DailyIndex) Name() string { return "index" }

// URL returns the master index location for day, e.g.
// .../daily-index/2026/QTR4/master.20261016.idx.
func (d *DailyIndex) URL(day time.Time) string {
	quarter := (int(day.Month())-1)/3 + 1
	return fmt.Sprintf("%s/%d/QTR%d/master.%s.idx",
		strings.TrimRight(d.opts.Endpoints.Index, "/"), day.Year(), quarter, day.Format("20060102"))
}

func (d *DailyIndex) List(ctx context.Context) ([]models.FilingReference, error) {
	day := d.opts.asOf()
	var lastErr error
	for i := 0; i < max(d.opts.LookbackDays, 1); i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "sources: daily index")
		}
		body, err := d.fetcher.Get(ctx, d.URL(day.AddDate(0, 0, -i)))
		switch {
		case err == nil:
		case httpclient.Denied(err):
			// 403 and 429 hold for the whole run
			return nil, eris.Wrap(err, "sources: daily index")
		case eris.Is(err, httpclient.ErrNotFound):
			continue
		default:
			lastErr = err
			continue
		}
		if refs := d.parse(body); len(refs) > 0 {
			return normalize(refs, d.opts.Limit), nil
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "sources: daily index")
	}
	return nil, nil
}

// parse reads master index rows, CIK|Company Name|Form Type|Date Filed|File Name,
// below the dashed header separator.
func (d *DailyIndex) parse(body []byte) []models.FilingReference {
	refs := make([]models.FilingReference, 0)
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	inRows := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !inRows {
			inRows = strings.HasPrefix(line, "---")
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) != 5 || strings.TrimSpace(parts[2]) != formType {
			continue
		}
		refs = append(refs, models.FilingReference{
			Company: strings.TrimSpace(parts[1]),
			URL:     strings.TrimRight(d.opts.Endpoints.Archive, "/") + "/Archives/" + strings.TrimLeft(strings.TrimSpace(parts[4]), "/"),
			Filed:   parseFiled(parts[3]),
			Form:    formType,
			CIK:     strings.TrimSpace(parts[0]),
		})
	}
	return refs
}
