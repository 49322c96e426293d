package linkedin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"easyapply/internal/config"
	"easyapply/internal/engine"
)

// expLevelCodes maps configured experience levels to the platform's
// f_E filter codes.
var expLevelCodes = map[string]string{
	"internship":       "1",
	"entry level":      "2",
	"associate":        "3",
	"mid-senior level": "4",
	"director":         "5",
	"executive":        "6",
}

// datePostedCodes maps the date_posted setting to f_TPR values.
var datePostedCodes = map[string]string{
	"past_24_hours": "r86400",
	"past_week":     "r604800",
	"past_month":    "r2592000",
	"any_time":      "",
}

// BuildSearchURL constructs one search results URL for a title and
// location, applying the configured filters.
func BuildSearchURL(title, location string, cfg config.SearchConfig) string {
	params := url.Values{}
	params.Set("keywords", title)
	params.Set("location", location)

	if cfg.EasyApplyOnly {
		params.Set("f_LF", "f_AL")
	}
	if code, ok := datePostedCodes[cfg.DatePosted]; ok && code != "" {
		params.Set("f_TPR", code)
	}
	var codes []string
	for _, level := range cfg.ExperienceLevels {
		if code, ok := expLevelCodes[strings.ToLower(level)]; ok {
			codes = append(codes, code)
		}
	}
	if len(codes) > 0 {
		params.Set("f_E", strings.Join(codes, ","))
	}
	return jobsURL + "?" + params.Encode()
}

type searchQuery struct {
	title    string
	location string
}

// JobSearch yields postings from the search result pages, one at a
// time: every configured title is searched in every configured
// location, paginating each result list until exhausted.
type JobSearch struct {
	session *Session
	cfg     config.SearchConfig
	log     *zap.Logger

	queries []searchQuery
	qi      int
	onQuery bool // current query has a loaded results page
	pageNum int
	buf     []engine.Posting
}

// NewJobSearch builds the provider from the search configuration.
// Locations default to a single empty location (platform default).
func NewJobSearch(session *Session, cfg config.SearchConfig, log *zap.Logger) *JobSearch {
	locations := cfg.Locations
	if len(locations) == 0 {
		locations = []string{""}
	}
	var queries []searchQuery
	for _, title := range cfg.JobTitles {
		for _, loc := range locations {
			queries = append(queries, searchQuery{title: title, location: loc})
		}
	}
	return &JobSearch{session: session, cfg: cfg, log: log, queries: queries}
}

// Next returns the next posting. ok=false once every query and page is
// exhausted.
func (s *JobSearch) Next(ctx context.Context) (engine.Posting, bool, error) {
	for len(s.buf) == 0 {
		loaded, err := s.loadNextPage(ctx)
		if err != nil {
			return engine.Posting{}, false, err
		}
		if !loaded {
			return engine.Posting{}, false, nil
		}
	}
	p := s.buf[0]
	s.buf = s.buf[1:]
	return p, true, nil
}

// loadNextPage advances to the next results page: the next page of the
// current query when pagination allows, else the first page of the next
// query. Returns false when no pages remain.
func (s *JobSearch) loadNextPage(ctx context.Context) (bool, error) {
	page := s.session.page.Context(ctx)

	for s.qi < len(s.queries) {
		q := s.queries[s.qi]
		if s.onQuery {
			ok, err := s.nextResultsPage(page)
			if err != nil {
				return false, err
			}
			if ok {
				s.pageNum++
				return s.collectCards(page)
			}
			s.log.Info("no more pages",
				zap.String("title", q.title), zap.String("location", q.location))
			s.qi++
			s.onQuery = false
			continue
		}

		s.log.Info("searching", zap.String("title", q.title), zap.String("location", q.location))
		target := BuildSearchURL(q.title, q.location, s.cfg)
		if err := page.Timeout(s.sessionNavTimeout()).Navigate(target); err != nil {
			return false, s.session.fail(fmt.Errorf("open search results: %w", err))
		}
		if err := page.Timeout(s.sessionNavTimeout()).WaitLoad(); err != nil {
			return false, s.session.fail(fmt.Errorf("load search results: %w", err))
		}
		s.onQuery = true
		s.pageNum = 1
		return s.collectCards(page)
	}
	return false, nil
}

func (s *JobSearch) sessionNavTimeout() time.Duration {
	return s.session.cfg.NavigationTimeout()
}

// nextResultsPage clicks the pagination control. false means the
// current query has no further pages.
func (s *JobSearch) nextResultsPage(page *rod.Page) (bool, error) {
	next, err := page.Timeout(s.session.cfg.FieldWait()).Element(`button[aria-label="Next"]`)
	if err != nil {
		return false, nil
	}
	if err := next.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, s.session.fail(fmt.Errorf("click next page: %w", err))
	}
	if err := page.Timeout(s.sessionNavTimeout()).WaitLoad(); err != nil {
		return false, s.session.fail(fmt.Errorf("load next page: %w", err))
	}
	return true, nil
}

// cardInfo mirrors the JSON produced by the collection script.
type cardInfo struct {
	Ref       string `json:"ref"`
	Title     string `json:"title"`
	Company   string `json:"company"`
	EasyApply bool   `json:"easyApply"`
}

// collectCards tags each visible job card with a stable ref attribute
// and buffers one Posting per card. The tagging happens in the same
// evaluation that reads the cards, so refs cannot go stale between
// enumeration and use.
func (s *JobSearch) collectCards(page *rod.Page) (bool, error) {
	res, err := page.Timeout(s.sessionNavTimeout()).Evaluate(&rod.EvalOptions{
		JS: `
		() => {
			const cards = Array.from(document.querySelectorAll(
				'.jobs-search__results-list li, li.jobs-search-results__list-item, li.scaffold-layout__list-item'));
			return cards.map((card, i) => {
				card.dataset.eaCard = String(i);
				const titleEl = card.querySelector(
					'.job-card-list__title, .base-search-card__title, h3, strong');
				const companyEl = card.querySelector(
					'.job-card-container__company-name, .base-search-card__subtitle, h4');
				return {
					ref: String(i),
					title: titleEl ? titleEl.innerText.trim() : '',
					company: companyEl ? companyEl.innerText.trim() : '',
					easyApply: (card.innerText || '').includes('Easy Apply'),
				};
			}).filter(c => c.title);
		}
		`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil {
		return false, s.session.fail(fmt.Errorf("collect job cards: %w", err))
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return false, fmt.Errorf("marshal job cards: %w", err)
	}
	var cards []cardInfo
	if err := json.Unmarshal(raw, &cards); err != nil {
		return false, fmt.Errorf("decode job cards: %w", err)
	}

	s.log.Info("results page loaded", zap.Int("page", s.pageNum), zap.Int("cards", len(cards)))
	if len(cards) == 0 {
		// Empty page: treat the query as exhausted.
		s.qi++
		s.onQuery = false
		return true, nil
	}
	for _, c := range cards {
		s.buf = append(s.buf, engine.Posting{
			Ref:       c.Ref,
			Title:     c.Title,
			Company:   c.Company,
			EasyApply: c.EasyApply,
		})
	}
	return true, nil
}
