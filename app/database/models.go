package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// Call is a stored grant record.
type Call struct {
	ID           string
	DedupKey     string
	Source       string
	ExternalID   string
	Title        string
	Issuer       string
	Type         string
	Description  string
	Budget       decimal.NullDecimal
	Deadline     *time.Time
	Country      string
	Region       string
	URL          string
	Requirements []string
	Tags         []string
	Status       string
	Relevance    string // empty when unclassified
	PublishedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Source is a registered ingestion source with its scheduling state.
type Source struct {
	ID            string
	Name          string
	URL           string
	Format        string
	Enabled       bool
	LastFetchedAt *time.Time
	NextFetchAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Stats aggregates the record set for the /stats endpoint.
type Stats struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	BySource    map[string]int `json:"by_source"`
	ByRelevance map[string]int `json:"by_relevance"`
}
