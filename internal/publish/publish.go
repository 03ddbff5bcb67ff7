// Package publish turns the screener's artifacts into a static site: one page
// per run date under history/, an index.html showing the latest report and
// the archive, and the PDFs under reports/.
package publish

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bighogz/form4-screener/internal/archive"
	"github.com/rotisserie/eris"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

// NoSummary replaces the summary when the summary file does not exist.
const NoSummary = "No summary found."

const dateLayout = "2006-01-02"

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

var markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify))

// Store is the archive the publisher records into. *archive.Store satisfies it.
type Store interface {
	Record(ctx context.Context, e archive.Entry) error
	List(ctx context.Context) ([]archive.Entry, error)
}

type Publisher struct {
	publicDir   string
	summaryFile string
	pdfPath     func(date time.Time) string
	store       Store
	logger      *zap.Logger
}

// New returns a Publisher writing under publicDir. pdfPath maps a run date to
// the screener's PDF artifact.
func New(publicDir, summaryFile string, pdfPath func(time.Time) string, store Store, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		publicDir:   publicDir,
		summaryFile: summaryFile,
		pdfPath:     pdfPath,
		store:       store,
		logger:      logger,
	}
}

type reportView struct {
	Day     string
	Summary template.HTML
	PDFHref string
}

type indexView struct {
	Latest  reportView
	Entries []archive.Entry
}

// Publish writes the pages for date and records the run in the archive.
func (p *Publisher) Publish(ctx context.Context, date time.Time) (*archive.Entry, error) {
	day := date.Format(dateLayout)

	summary, err := p.readSummary()
	if err != nil {
		return nil, err
	}
	summaryHTML, err := RenderSummary(summary)
	if err != nil {
		return nil, err
	}

	pdfRel, err := p.copyPDF(date)
	if err != nil {
		return nil, err
	}

	entry := archive.Entry{
		Date:     date,
		Results:  CountResults(summary),
		PDFPath:  pdfRel,
		PagePath: path.Join("history", day+".html"),
		Summary:  summary,
	}

	view := reportView{Day: day, Summary: summaryHTML}
	if pdfRel != "" {
		view.PDFHref = "../" + pdfRel
	}
	if err := p.render(filepath.FromSlash(entry.PagePath), "page", view); err != nil {
		return nil, err
	}

	if err := p.store.Record(ctx, entry); err != nil {
		return nil, err
	}
	entries, err := p.store.List(ctx)
	if err != nil {
		return nil, err
	}
	view.PDFHref = pdfRel
	if err := p.render("index.html", "index", indexView{Latest: view, Entries: entries}); err != nil {
		return nil, err
	}

	p.logger.Info("published report",
		zap.String("date", day),
		zap.Int("results", entry.Results),
		zap.String("page", entry.PagePath),
		zap.Bool("pdf", pdfRel != ""),
	)
	return &entry, nil
}

func (p *Publisher) readSummary() (string, error) {
	b, err := os.ReadFile(p.summaryFile)
	if os.IsNotExist(err) {
		p.logger.Warn("summary file missing", zap.String("path", p.summaryFile))
		return NoSummary, nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "publish: read %s", p.summaryFile)
	}
	return strings.TrimSpace(string(b)), nil
}

// copyPDF copies the dated PDF into reports/ and returns its site-relative
// path, or "" when the screener produced none for date.
func (p *Publisher) copyPDF(date time.Time) (string, error) {
	src := p.pdfPath(date)
	in, err := os.Open(src)
	if os.IsNotExist(err) {
		p.logger.Warn("PDF report missing", zap.String("path", src))
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "publish: open %s", src)
	}
	defer in.Close()

	rel := path.Join("reports", filepath.Base(src))
	dst := filepath.Join(p.publicDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", eris.Wrapf(err, "publish: create %s", filepath.Dir(dst))
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", eris.Wrapf(err, "publish: create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", eris.Wrapf(err, "publish: copy %s", src)
	}
	if err := out.Close(); err != nil {
		return "", eris.Wrapf(err, "publish: close %s", dst)
	}
	return rel, nil
}

func (p *Publisher) render(rel, name string, data any) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return eris.Wrapf(err, "publish: render %s", name)
	}
	dst := filepath.Join(p.publicDir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return eris.Wrapf(err, "publish: create %s", filepath.Dir(dst))
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0644); err != nil {
		return eris.Wrapf(err, "publish: write %s", dst)
	}
	return nil
}

// RenderSummary converts summary text to HTML. Result lines ("- ...") become
// a list and URLs become links; raw HTML in the input is dropped.
func RenderSummary(summary string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(summary), &buf); err != nil {
		return "", eris.Wrap(err, "publish: render summary")
	}
	return template.HTML(buf.String()), nil
}

// CountResults counts the result lines of a summary.
func CountResults(summary string) int {
	n := 0
	for _, line := range strings.Split(summary, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			n++
		}
	}
	return n
}
