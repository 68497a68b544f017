package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/beneyalraj/listing/internal/fetch"
	"github.com/beneyalraj/listing/internal/model"
)

const (
	careersFutureDefaultBaseURL = "https://api.mycareersfuture.gov.sg/v2"
	careersFuturePageLimit      = 100
)

// CareersFutureOptions carry the fixed search filters for the board API.
type CareersFutureOptions struct {
	Categories      []string // job category IDs sent with every search
	EmploymentTypes []string // employment type IDs sent with every search
}

// CareersFutureCrawler drives the MyCareersFuture REST API: a skill
// suggestion lookup, a cursor-paged search, and a JSON detail endpoint.
type CareersFutureCrawler struct {
	baseURL string
	opts    CareersFutureOptions
	client  *fetch.Client
	logger  *slog.Logger
}

// NewCareersFutureCrawler creates a crawler for the board API. baseURL is
// overridable for tests; pass "" for the real endpoint.
func NewCareersFutureCrawler(baseURL string, opts CareersFutureOptions, client *fetch.Client, logger *slog.Logger) *CareersFutureCrawler {
	if baseURL == "" {
		baseURL = careersFutureDefaultBaseURL
	}
	return &CareersFutureCrawler{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		client:  client,
		logger:  logger,
	}
}

func (c *CareersFutureCrawler) Source() string { return model.ProviderCareersFuture }

type skillSuggestionsResponse struct {
	Skills []struct {
		UUID string `json:"uuid"`
	} `json:"skills"`
}

type searchRequest struct {
	SessionID       string   `json:"sessionId"`
	Search          string   `json:"search"`
	Categories      []string `json:"categories"`
	EmploymentTypes []string `json:"employmentTypes"`
	PostingCompany  []string `json:"postingCompany"`
	SortBy          []string `json:"sortBy"`
	SkillUUIDs      []string `json:"skillUuids"`
}

type searchResponse struct {
	Results []struct {
		UUID string `json:"uuid"`
	} `json:"results"`
	Total int `json:"total"`
	Links struct {
		Next struct {
			Href string `json:"href"`
		} `json:"next"`
	} `json:"_links"`
}

// ListRefs resolves the query to skill tags, then follows the search API's
// next-page links until the server stops supplying one. The reported total is
// logged once for observability but never drives the loop — the API's totals
// are not always consistent with what it actually pages out.
func (c *CareersFutureCrawler) ListRefs(ctx context.Context, query model.CrawlQuery) ([]string, error) {
	skillUUIDs, err := c.skillSuggestions(ctx, query.Search)
	if err != nil {
		// Failing to reach the suggestion endpoint means the API itself is
		// unreachable; abort this source's pass.
		return nil, err
	}
	if len(skillUUIDs) == 0 {
		c.logger.Warn("no skill suggestions, searching unfiltered", "query", query.Search)
	}

	payload := searchRequest{
		Search:          query.Search,
		Categories:      c.opts.Categories,
		EmploymentTypes: c.opts.EmploymentTypes,
		PostingCompany:  []string{},
		SortBy:          []string{"new_posting_date"},
		SkillUUIDs:      skillUUIDs,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("careersfuture search payload: %w", err)
	}

	var ids []string
	seen := make(map[string]struct{})
	pageURL := fmt.Sprintf("%s/search?limit=%d&page=0", c.baseURL, careersFuturePageLimit)

	for page := 0; pageURL != ""; page++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, pageURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("careersfuture search request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(ctx, req)
		if err != nil {
			if page == 0 {
				return nil, fmt.Errorf("careersfuture search: %w", err)
			}
			c.logger.Warn("search page failed, keeping partial results",
				"page", page, "error", err)
			break
		}

		var sr searchResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&sr)
		resp.Body.Close()
		if decodeErr != nil {
			c.logger.Warn("search page undecodable, keeping partial results",
				"page", page, "error", decodeErr)
			break
		}

		if page == 0 {
			c.logger.Info("search started",
				"query", query.Search, "reported_total", sr.Total)
		}

		for _, r := range sr.Results {
			if _, parseErr := uuid.Parse(r.UUID); parseErr != nil {
				c.logger.Debug("skipping result with malformed uuid", "uuid", r.UUID)
				continue
			}
			if _, dup := seen[r.UUID]; dup {
				continue
			}
			seen[r.UUID] = struct{}{}
			ids = append(ids, r.UUID)
		}

		pageURL = sr.Links.Next.Href
	}

	c.logger.Info("search finished", "query", query.Search, "unique_ids", len(ids))
	return ids, nil
}

// skillSuggestions resolves free-text query keywords into skill tag UUIDs via
// the suggestion endpoint (form POST). An empty set is fine — the search just
// runs unfiltered.
func (c *CareersFutureCrawler) skillSuggestions(ctx context.Context, search string) ([]string, error) {
	form := url.Values{"jobTitle": {search}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/skills/suggestions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("careersfuture suggestions request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("careersfuture suggestions: %w", err)
	}
	defer resp.Body.Close()

	var sr skillSuggestionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("careersfuture suggestions decode: %w", err)
	}

	uuids := make([]string, 0, len(sr.Skills))
	for _, s := range sr.Skills {
		if s.UUID != "" {
			uuids = append(uuids, s.UUID)
		}
	}
	c.logger.Debug("skill suggestions resolved", "query", search, "count", len(uuids))
	return uuids, nil
}

type jobDetailResponse struct {
	UUID          string `json:"uuid"`
	Title         string `json:"title"`
	Description   string `json:"description"` // HTML
	HiringCompany *struct {
		Name string `json:"name"`
	} `json:"hiringCompany"`
	PostedCompany *struct {
		Name string `json:"name"`
	} `json:"postedCompany"`
	PositionLevels []struct {
		Position string `json:"position"`
	} `json:"positionLevels"`
	Metadata struct {
		CreatedAt string `json:"createdAt"`
	} `json:"metadata"`
}

// FetchDetail fetches one job's JSON record. The HTML description is reduced
// to plain text here; markdown enrichment happens downstream.
func (c *CareersFutureCrawler) FetchDetail(ctx context.Context, id string) (*model.JobRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("careersfuture detail: empty job id")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("careersfuture detail request for %s: %w", id, err)
	}
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("careersfuture detail for %s: %w", id, err)
	}
	defer resp.Body.Close()

	var jd jobDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&jd); err != nil {
		return nil, fmt.Errorf("careersfuture detail decode for %s: %w", id, err)
	}

	rec := &model.JobRecord{
		SourceID:    jd.UUID,
		Company:     companyName(jd),
		Title:       jd.Title,
		Location:    "Singapore", // the board is Singapore-only
		Level:       positionLevel(jd),
		Description: htmlToText(jd.Description),
		Provider:    model.ProviderCareersFuture,
	}
	if jd.Metadata.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, jd.Metadata.CreatedAt); err == nil {
			rec.PostedAt = &t
		}
	}
	return rec, nil
}

// companyName prefers the hiring company over the posting agency.
func companyName(jd jobDetailResponse) string {
	if jd.HiringCompany != nil && jd.HiringCompany.Name != "" {
		return jd.HiringCompany.Name
	}
	if jd.PostedCompany != nil && jd.PostedCompany.Name != "" {
		return jd.PostedCompany.Name
	}
	return ""
}

func positionLevel(jd jobDetailResponse) string {
	if len(jd.PositionLevels) > 0 && jd.PositionLevels[0].Position != "" {
		return jd.PositionLevels[0].Position
	}
	return "Not applicable"
}
