package sources

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/grantpipe/grantpipe/app/ingest"
)

// FeedAdapter reads sources that announce their calls over RSS/Atom, one
// entry per call. The entry GUID doubles as the external identifier so
// re-published entries collapse onto the same dedup key.
type FeedAdapter struct {
	parser *gofeed.Parser
}

func NewFeedAdapter() *FeedAdapter {
	return &FeedAdapter{
		parser: gofeed.NewParser(),
	}
}

func (a *FeedAdapter) Parse(data []byte) ([]ingest.RawRecord, error) {
	feed, err := a.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	records := make([]ingest.RawRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		record := ingest.RawRecord{
			"titulo":      item.Title,
			"descripcion": item.Description,
			"url":         item.Link,
			"external_id": cmp.Or(item.GUID, item.Link),
		}

		if item.PublishedParsed != nil {
			record["fecha_publicacion"] = item.PublishedParsed.Format("2006-01-02")
		}
		if len(item.Categories) > 0 {
			record["tags"] = item.Categories
		}

		records = append(records, record)
	}

	return records, nil
}
