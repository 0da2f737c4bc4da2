package sources

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/grantpipe/grantpipe/app/ingest"
)

// tableSelectors are the result-table shapes seen across source sites,
// tried in order; the first selector with rows wins. When none match, rows
// are scanned document-wide as a last resort.
var tableSelectors = []string{
	"table.tablaResultados",
	"table.resultados",
	"#tablaResultados",
	"table.table",
	".resultados table",
}

var idParamPattern = regexp.MustCompile(`(?:^|[?&])(?:id|numConv)=(\d+)`)

// HTMLAdapter extracts raw records from a search-results HTML table. The
// expected row layout is title (with detail link), issuing body, then
// publication date; anything it cannot read degrades to an absent key.
type HTMLAdapter struct {
	baseURL string
}

func NewHTMLAdapter(baseURL string) *HTMLAdapter {
	return &HTMLAdapter{baseURL: baseURL}
}

func (a *HTMLAdapter) Parse(data []byte) ([]ingest.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	rows := a.findRows(doc)
	if rows == nil {
		return nil, nil
	}

	var records []ingest.RawRecord
	rows.Each(func(i int, row *goquery.Selection) {
		if row.Find("th").Length() > 0 {
			return // header row
		}

		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		record := a.parseRow(cells)
		if record != nil {
			records = append(records, record)
		}
	})

	slog.Debug("HTML table parsed", "rows", len(records))
	return records, nil
}

func (a *HTMLAdapter) findRows(doc *goquery.Document) *goquery.Selection {
	for _, selector := range tableSelectors {
		table := doc.Find(selector)
		if table.Length() > 0 {
			return table.First().Find("tr")
		}
	}

	rows := doc.Find("tr")
	if rows.Length() > 1 {
		return rows
	}
	return nil
}

func (a *HTMLAdapter) parseRow(cells *goquery.Selection) ingest.RawRecord {
	first := cells.First()
	link := first.Find("a").First()

	title := strings.TrimSpace(link.Text())
	if title == "" {
		title = strings.TrimSpace(first.Text())
	}
	// Too short to be a call title: layout rows, pagination, etc.
	if len(title) <= 5 {
		return nil
	}

	record := ingest.RawRecord{
		"titulo":    title,
		"organismo": strings.TrimSpace(cells.Eq(1).Text()),
	}

	if published := strings.TrimSpace(cells.Eq(2).Text()); published != "" {
		record["fecha_publicacion"] = published
	}

	if href, ok := link.Attr("href"); ok && href != "" {
		record["url"] = a.absoluteURL(href)
		if m := idParamPattern.FindStringSubmatch(href); m != nil {
			record["external_id"] = m[1]
		}
	}

	return record
}

func (a *HTMLAdapter) absoluteURL(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return href
	}
	base, err := url.Parse(a.baseURL)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
