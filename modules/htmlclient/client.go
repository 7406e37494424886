// Fallback client that scrapes the web frontend. Only version sniffing is
// real so far; the data operations are placeholders that keep the strategy
// chain total and fail with a recognizable error.
package htmlclient

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

type Client struct {
	HTTP   *http.Client
	Pages  []string // login page candidates
	School string
}

func NewClient(server, school string) *Client {
	return &Client{
		HTTP:   &http.Client{Timeout: 15 * time.Second},
		Pages:  untis.LoginPageURLs(server, school),
		School: school,
	}
}

// Authenticate will eventually drive the web login form.
func (c *Client) Authenticate(ctx context.Context, identity, password string) error {
	return fmt.Errorf("html login: %w", untis.ErrNotImplemented)
}

// Timetable will eventually scrape the weekly grid.
func (c *Client) Timetable(ctx context.Context, t untis.ElementType, id int64, start, end time.Time) (untis.Timetable, error) {
	return untis.Timetable{}, fmt.Errorf("html timetable: %w", untis.ErrNotImplemented)
}

func (c *Client) Absences(ctx context.Context, start, end time.Time) ([]untis.Absence, error) {
	return nil, fmt.Errorf("html absences: %w", untis.ErrNotImplemented)
}

func (c *Client) HomeWorks(ctx context.Context, start, end time.Time) ([]untis.PeriodHomeWork, error) {
	return nil, fmt.Errorf("html homework: %w", untis.ErrNotImplemented)
}

func (c *Client) Exams(ctx context.Context, start, end time.Time) ([]untis.Exam, error) {
	return nil, fmt.Errorf("html exams: %w", untis.ErrNotImplemented)
}

var versionPattern = regexp.MustCompile(`\d{4}\.\d+(\.\d+)?`)

// SniffVersion pulls the server version off the login page. Every server
// generation serves that page, which makes it the one probe that cannot
// be turned down.
func (c *Client) SniffVersion(ctx context.Context) (string, error) {
	var lastErr error
	for _, page := range c.Pages {
		version, err := c.sniffPage(ctx, page)
		if err != nil {
			lastErr = err
			continue
		}
		if version != "" {
			return version, nil
		}
	}
	if lastErr != nil {
		return "", lastErr
	}

	return "", nil
}

func (c *Client) sniffPage(ctx context.Context, page string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &untis.TransportError{URL: page, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &untis.HTTPError{Status: resp.StatusCode, URL: page}
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &untis.DecodeError{What: "login page", Err: err}
	}

	return versionFromDocument(doc), nil
}

// versionFromDocument checks the explicit meta tags first and falls back
// to scanning the footer text for a version-shaped token.
func versionFromDocument(doc *goquery.Document) string {
	for _, name := range []string{"untis-version", "generator", "application-name"} {
		if content, ok := doc.Find(`meta[name="` + name + `"]`).Attr("content"); ok {
			if v := versionPattern.FindString(content); v != "" {
				return v
			}
		}
	}
	var found string
	doc.Find("footer, .unTisFooter, #footer").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v := versionPattern.FindString(strings.TrimSpace(s.Text())); v != "" {
			found = v

			return false
		}

		return true
	})

	return found
}
