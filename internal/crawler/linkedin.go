package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/beneyalraj/listing/internal/fetch"
	"github.com/beneyalraj/listing/internal/model"
)

const (
	linkedInDefaultBaseURL = "https://www.linkedin.com/jobs-guest/jobs/api"
	linkedInPageSize       = 10
)

// LinkedInOptions carry the fixed search filters for the guest API.
type LinkedInOptions struct {
	GeoID        string // geoId query parameter
	PostedWithin string // f_TPR, e.g. "r86400" for the last 24h
	JobType      string // f_JT, e.g. "F" for full-time
	WorkType     string // f_WT remote/hybrid/onsite filter
	MaxStart     int    // highest pagination offset to request
}

// LinkedInCrawler pages through the LinkedIn guest search API and scrapes
// job details out of the public posting markup. No authentication; the API
// throttles aggressively, so all calls go through the resilient fetch
// clients with their pacing and identity rotation.
type LinkedInCrawler struct {
	baseURL    string
	opts       LinkedInOptions
	listClient *fetch.Client // listing pages: longer pre-request delays
	detail     *fetch.Client // detail pages: shorter delays
	logger     *slog.Logger
}

// NewLinkedInCrawler creates a crawler for the guest API. baseURL is
// overridable for tests; pass "" for the real endpoint.
func NewLinkedInCrawler(baseURL string, opts LinkedInOptions, listClient, detailClient *fetch.Client, logger *slog.Logger) *LinkedInCrawler {
	if baseURL == "" {
		baseURL = linkedInDefaultBaseURL
	}
	return &LinkedInCrawler{
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
		listClient: listClient,
		detail:     detailClient,
		logger:     logger,
	}
}

func (c *LinkedInCrawler) Source() string { return model.ProviderLinkedIn }

// ListRefs walks the seeMoreJobPostings endpoint in steps of 10 and collects
// unique job IDs from the result cards. Pagination stops when a page yields
// no list items, no new IDs, an empty body, or a failed fetch; IDs gathered
// before a mid-crawl failure are kept.
func (c *LinkedInCrawler) ListRefs(ctx context.Context, query model.CrawlQuery) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})

	for start := 0; start <= c.opts.MaxStart; start += linkedInPageSize {
		pageURL := c.searchURL(query, start)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, fmt.Errorf("linkedin listing request: %w", err)
		}
		resp, err := c.listClient.Do(ctx, req)
		if err != nil {
			if start == 0 {
				return nil, fmt.Errorf("linkedin listing: %w", err)
			}
			c.logger.Warn("listing page failed, stopping pagination",
				"start", start, "error", err)
			break
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			c.logger.Warn("listing page unparseable, stopping pagination",
				"start", start, "error", err)
			break
		}

		items := doc.Find("li")
		if items.Length() == 0 {
			c.logger.Info("no job cards on page, stopping", "start", start)
			break
		}

		added := 0
		items.Each(func(_ int, li *goquery.Selection) {
			id, ok := jobIDFromCard(li)
			if !ok {
				return // not a job card; skip silently
			}
			if _, dup := seen[id]; dup {
				return
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
			added++
		})

		c.logger.Debug("listing page scraped",
			"start", start, "cards", items.Length(), "new_ids", added)

		// Cards present but nothing new: end of relevant results.
		if added == 0 {
			break
		}
	}

	c.logger.Info("listing phase finished",
		"query", query.Search, "unique_ids", len(ids))
	return ids, nil
}

// searchURL builds the guest search URL. Spaces in the keywords become "+"
// (encoded) to match what the web client sends.
func (c *LinkedInCrawler) searchURL(query model.CrawlQuery, start int) string {
	params := url.Values{}
	params.Set("keywords", strings.ReplaceAll(query.Search, " ", "+"))
	params.Set("location", query.Location)
	if c.opts.GeoID != "" {
		params.Set("geoId", c.opts.GeoID)
	}
	if c.opts.PostedWithin != "" {
		params.Set("f_TPR", c.opts.PostedWithin)
	}
	if c.opts.JobType != "" {
		params.Set("f_JT", c.opts.JobType)
	}
	if c.opts.WorkType != "" {
		params.Set("f_WT", c.opts.WorkType)
	}
	params.Set("start", fmt.Sprintf("%d", start))
	return c.baseURL + "/seeMoreJobPostings/search?" + params.Encode()
}

// jobIDFromCard extracts the numeric posting ID from a result card's
// data-entity-urn ("urn:li:jobPosting:4012345678"). A missing card div or a
// URN of the wrong shape means the <li> is not a job item.
func jobIDFromCard(li *goquery.Selection) (string, bool) {
	urn, ok := li.Find("div.base-card").Attr("data-entity-urn")
	if !ok || !strings.Contains(urn, "jobPosting:") {
		return "", false
	}
	parts := strings.Split(urn, ":")
	if len(parts) < 4 || parts[3] == "" {
		return "", false
	}
	return parts[3], true
}

// FetchDetail fetches one public posting page and extracts fields through
// ordered selector chains; the first non-empty match wins and a fully missed
// field stays empty. The description keeps its line structure; an empty
// description causes the record to be dropped downstream.
func (c *LinkedInCrawler) FetchDetail(ctx context.Context, id string) (*model.JobRecord, error) {
	detailURL := fmt.Sprintf("%s/jobPosting/%s", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailURL, nil)
	if err != nil {
		return nil, fmt.Errorf("linkedin detail request for %s: %w", id, err)
	}
	resp, err := c.detail.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("linkedin detail for %s: %w", id, err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("linkedin detail parse for %s: %w", id, err)
	}

	rec := &model.JobRecord{
		SourceID: id,
		Provider: model.ProviderLinkedIn,
		Company: firstMatch(doc,
			func(d *goquery.Document) string {
				alt, _ := d.Find("div.top-card-layout__card a img").First().Attr("alt")
				return alt
			},
			func(d *goquery.Document) string {
				return d.Find("a.topcard__org-name-link").First().Text()
			},
			func(d *goquery.Document) string {
				return d.Find("span.topcard__flavor").First().Text()
			},
		),
		Title: firstMatch(doc,
			func(d *goquery.Document) string {
				return d.Find("div.top-card-layout__entity-info a").First().Text()
			},
			func(d *goquery.Document) string {
				return d.Find("h1.top-card-layout__title").First().Text()
			},
		),
		Location: firstMatch(doc,
			func(d *goquery.Document) string {
				return d.Find("span.topcard__flavor--bullet").First().Text()
			},
			func(d *goquery.Document) string {
				return d.Find("div.topcard__flavor-row span.topcard__flavor").First().Text()
			},
		),
		Level:       seniorityLevel(doc),
		Description: selectionText(doc.Find("div.show-more-less-html__markup").First()),
	}

	if rec.Company == "" {
		c.logger.Warn("could not extract company", "job_id", id)
	}
	if rec.Description == "" {
		c.logger.Warn("could not extract description", "job_id", id)
	}

	return rec, nil
}

// seniorityLevel scans the job-criteria list for the "Seniority level" row.
func seniorityLevel(doc *goquery.Document) string {
	var level string
	doc.Find("ul.description__job-criteria-list li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		header := li.Find("h3.description__job-criteria-subheader").Text()
		if !strings.Contains(header, "Seniority level") {
			return true
		}
		level = strings.TrimSpace(li.Find("span.description__job-criteria-text").Text())
		return false
	})
	return level
}
