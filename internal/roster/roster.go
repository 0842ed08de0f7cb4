package roster

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// DefaultWikipediaURL lists the S&P 500 constituents.
const DefaultWikipediaURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// ErrNoSymbols means a roster source produced nothing usable.
var ErrNoSymbols = errors.New("roster contains no symbols")

// Roster supplies the ordered, de-duplicated symbol universe of a batch.
type Roster interface {
	Symbols(ctx context.Context) ([]string, error)
	Name() string
}

// Normalize upper-cases a ticker and rewrites class-share dots to the
// provider's dash form (BRK.B -> BRK-B).
func Normalize(sym string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(sym)), ".", "-")
}

// dedupe normalises syms and drops blanks and repeats, keeping first order.
func dedupe(syms []string) []string {
	seen := make(map[string]struct{}, len(syms))
	out := make([]string, 0, len(syms))
	for _, s := range syms {
		s = Normalize(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// StaticRoster is a fixed symbol list, typically from config or flags.
type StaticRoster struct {
	List []string
}

func (r StaticRoster) Name() string { return "static" }

func (r StaticRoster) Symbols(context.Context) ([]string, error) {
	out := dedupe(r.List)
	if len(out) == 0 {
		return nil, ErrNoSymbols
	}
	return out, nil
}

// WikipediaRoster scrapes the constituents table of an index page.
type WikipediaRoster struct {
	URL       string
	Client    *http.Client
	UserAgent string
}

// NewWikipediaRoster creates a roster for url (DefaultWikipediaURL when
// empty).
func NewWikipediaRoster(url string) *WikipediaRoster {
	if url == "" {
		url = DefaultWikipediaURL
	}
	return &WikipediaRoster{
		URL:       url,
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: "divscan/1.0",
	}
}

func (r *WikipediaRoster) Name() string { return "wikipedia" }

// Symbols returns the first column of every row of table#constituents.
func (r *WikipediaRoster) Symbols(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build roster request: %w", err)
	}
	req.Header.Set("User-Agent", r.UserAgent)

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch roster: HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse roster page: %w", err)
	}

	var raw []string
	doc.Find("table#constituents tbody tr").Each(func(i int, s *goquery.Selection) {
		td := s.Find("td").First()
		if td.Length() == 0 {
			return
		}
		raw = append(raw, td.Text())
	})

	out := dedupe(raw)
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", r.URL, ErrNoSymbols)
	}
	log.Info().Str("source", r.Name()).Int("symbols", len(out)).Msg("roster loaded")
	return out, nil
}
