package sources

import (
	"fmt"
	"log/slog"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// DetailExtractor pulls a plain-text description out of a call's detail
// page, for sources whose listing rows carry no description of their own.
type DetailExtractor struct{}

func NewDetailExtractor() *DetailExtractor {
	return &DetailExtractor{}
}

func (e *DetailExtractor) Run(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract description: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no description extracted from HTML data")
	}

	slog.Debug("Description extracted successfully",
		"title", article.Title,
		"length", len(text))

	return text, nil
}
