package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"JobScanner/internal/domain"
	"JobScanner/internal/logging"
	"JobScanner/internal/ports"
	"JobScanner/internal/scanner"
)

const BoardKind = "htmlboard"

var errIncompleteCard = errors.New("card misses title, company or link")

// boardSelectors are the CSS selectors the board scanner reads from site
// options. Every field has a default so a bare config still parses a
// conventional markup.
type boardSelectors struct {
	card         string
	title        string
	company      string
	location     string
	link         string
	salary       string
	technologies string
	jobType      string
	level        string
	description  string
	posted       string
}

func selectorsFromSite(site scanner.Site) boardSelectors {
	return boardSelectors{
		card:         site.Option("card", "div.job-card"),
		title:        site.Option("title", ".title"),
		company:      site.Option("company", ".company"),
		location:     site.Option("location", ".location"),
		link:         site.Option("link", "a[href]"),
		salary:       site.Option("salary", ".salary"),
		technologies: site.Option("technologies", ".tech"),
		jobType:      site.Option("jobType", ".job-type"),
		level:        site.Option("level", ".level"),
		description:  site.Option("description", ".description"),
		posted:       site.Option("posted", "time[datetime]"),
	}
}

// BoardScanner walks the paginated listing of a job board and turns each
// job card into a candidate posting.
type BoardScanner struct {
	name       string
	baseURL    string
	listPath   string
	maxRetries int
	selectors  boardSelectors
	fetcher    ports.PageFetcher
	logger     *slog.Logger
}

var _ scanner.Adapter = (*BoardScanner)(nil)

// NewBoardScanner validates the site and wires the shared page fetcher.
// maxRetries < 1 lets the fetcher use its configured default.
func NewBoardScanner(site scanner.Site, fetcher ports.PageFetcher, maxRetries int, log *slog.Logger) (*BoardScanner, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if site.Name == "" {
		return nil, fmt.Errorf("site name is required")
	}
	base, err := url.Parse(site.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", site.BaseURL)
	}
	if n, err := strconv.Atoi(site.Option("maxRetries", "")); err == nil {
		maxRetries = n
	}

	return &BoardScanner{
		name:       site.Name,
		baseURL:    strings.TrimSuffix(site.BaseURL, "/"),
		listPath:   site.Option("listPath", "/jobs?page=%d"),
		maxRetries: maxRetries,
		selectors:  selectorsFromSite(site),
		fetcher:    fetcher,
		logger:     logging.OrDiscard(log),
	}, nil
}

func (b *BoardScanner) Name() string {
	return b.name
}

// Scrape fetches pages 1..maxPages. Unavailable pages are skipped; an empty
// page ends the walk early.
func (b *BoardScanner) Scrape(ctx context.Context, maxPages int) ([]domain.Posting, error) {
	if maxPages < 1 {
		maxPages = 1
	}

	results := make([]domain.Posting, 0)
	seen := map[string]struct{}{}

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scrape %s: %w", b.name, err)
		}

		pageURL, err := buildPageURL(b.baseURL, b.listPath, page)
		if err != nil {
			return nil, fmt.Errorf("scrape %s: %w", b.name, err)
		}

		doc, err := b.fetcher.Fetch(ctx, pageURL, b.maxRetries)
		if err != nil {
			b.logger.Warn("skipping unavailable page", "source", b.name, "page", page, "error", err)
			continue
		}

		postings, cards := b.extractPostings(doc, pageURL)
		for _, p := range postings {
			if _, ok := seen[p.URL]; ok {
				continue
			}
			seen[p.URL] = struct{}{}
			results = append(results, p)
		}

		b.logger.Debug("page parsed", "source", b.name, "page", page, "cards", cards, "postings", len(postings))
		if cards == 0 {
			break
		}
	}

	b.logger.Info("scrape finished", "source", b.name, "count", len(results))
	return results, nil
}

func (b *BoardScanner) extractPostings(doc *goquery.Document, pageURL string) ([]domain.Posting, int) {
	var (
		collected []domain.Posting
		cards     int
	)

	doc.Find(b.selectors.card).Each(func(i int, card *goquery.Selection) {
		cards++
		posting, err := b.parseCard(card, pageURL)
		if err != nil {
			b.logger.Debug("skipping card", "source", b.name, "index", i, "error", err)
			return
		}
		collected = append(collected, posting)
	})

	return collected, cards
}

func (b *BoardScanner) parseCard(card *goquery.Selection, pageURL string) (domain.Posting, error) {
	sel := b.selectors

	title := CleanText(card.Find(sel.title).First().Text())
	company := CleanText(card.Find(sel.company).First().Text())
	href, _ := card.Find(sel.link).First().Attr("href")
	link, err := resolveLink(pageURL, href)
	if err != nil || title == "" || company == "" {
		return domain.Posting{}, errIncompleteCard
	}

	posting := domain.Posting{
		Title:           title,
		Company:         company,
		Location:        CleanText(card.Find(sel.location).First().Text()),
		Description:     CleanText(card.Find(sel.description).First().Text()),
		URL:             link,
		Source:          b.name,
		JobType:         normalizeToken(card.Find(sel.jobType).First().Text()),
		ExperienceLevel: normalizeToken(card.Find(sel.level).First().Text()),
		Technologies:    technologiesFrom(card.Find(sel.technologies)),
	}

	if text := card.Find(sel.salary).First().Text(); text != "" {
		posting.SalaryMin, posting.SalaryMax = ExtractSalary(text)
	}

	if stamp, ok := card.Find(sel.posted).First().Attr("datetime"); ok {
		if posted, err := parsePostedDate(stamp); err == nil {
			posting.PostedDate = &posted
		}
	}

	return posting, nil
}

// technologiesFrom reads one tag per element, or splits a single element's text on commas.
func technologiesFrom(sel *goquery.Selection) []string {
	if sel.Length() == 1 {
		return domain.SplitTechnologies(CleanText(sel.Text()))
	}
	var techs []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := CleanText(s.Text()); t != "" {
			techs = append(techs, t)
		}
	})
	return techs
}

func parsePostedDate(stamp string) (time.Time, error) {
	stamp = strings.TrimSpace(stamp)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, stamp); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", stamp)
}

func resolveLink(pageURL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("empty link")
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page url %s: %w", pageURL, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid link %s: %w", href, err)
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String(), nil
}

// buildPageURL expands the %d placeholder of listPath, or sets a page query
// parameter when there is none.
func buildPageURL(base, listPath string, page int) (string, error) {
	path := listPath
	if strings.Contains(path, "%d") {
		path = strings.Replace(path, "%d", strconv.Itoa(page), 1)
	}

	parsed, err := url.Parse(base + path)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base+path, err)
	}

	if !strings.Contains(listPath, "%d") {
		query := parsed.Query()
		query.Set("page", strconv.Itoa(page))
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}
