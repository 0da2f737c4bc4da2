package api

import (
	"net/http"
	"time"

	"github.com/grantpipe/grantpipe/app/database"
	"github.com/grantpipe/grantpipe/app/ingest"
	"github.com/grantpipe/grantpipe/app/sources"
	"github.com/grantpipe/grantpipe/app/tasks"
)

type Handler struct {
	callRepo    database.CallRepository
	sourceRepo  database.SourceRepository
	pipeline    *ingest.Pipeline
	configCache *sources.ConfigCache
	scheduler   tasks.TaskSchedulerInterface
	httpClient  *http.Client
	userAgent   string
}

// CallResponse is the JSON shape served for a single call.
type CallResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Issuer       string    `json:"issuer"`
	Type         string    `json:"type"`
	Description  string    `json:"description"`
	Budget       *float64  `json:"budget"`
	Deadline     *string   `json:"deadline"`
	Country      string    `json:"country"`
	Region       string    `json:"region"`
	URL          string    `json:"url"`
	Requirements []string  `json:"requirements"`
	Tags         []string  `json:"tags"`
	Status       string    `json:"status"`
	Source       string    `json:"source"`
	ExternalID   string    `json:"external_id"`
	DedupKey     string    `json:"dedup_key"`
	Relevance    string    `json:"relevance,omitempty"`
	PublishedAt  *string   `json:"published_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CallListResponse wraps a filtered page of calls.
type CallListResponse struct {
	Calls      []CallResponse `json:"calls"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

func toCallResponse(call database.Call) CallResponse {
	resp := CallResponse{
		ID:           call.ID,
		Title:        call.Title,
		Issuer:       call.Issuer,
		Type:         call.Type,
		Description:  call.Description,
		Country:      call.Country,
		Region:       call.Region,
		URL:          call.URL,
		Requirements: call.Requirements,
		Tags:         call.Tags,
		Status:       call.Status,
		Source:       call.Source,
		ExternalID:   call.ExternalID,
		DedupKey:     call.DedupKey,
		Relevance:    call.Relevance,
		CreatedAt:    call.CreatedAt,
		UpdatedAt:    call.UpdatedAt,
	}

	if call.Budget.Valid {
		amount := call.Budget.Decimal.InexactFloat64()
		resp.Budget = &amount
	}
	if call.Deadline != nil {
		deadline := call.Deadline.Format("2006-01-02")
		resp.Deadline = &deadline
	}
	if call.PublishedAt != nil {
		published := call.PublishedAt.Format("2006-01-02")
		resp.PublishedAt = &published
	}
	if resp.Requirements == nil {
		resp.Requirements = []string{}
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}

	return resp
}
