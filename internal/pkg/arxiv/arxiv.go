package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "http://export.arxiv.org/api/query"

// ErrNoResults is returned when the feed contains no entries.
var ErrNoResults = errors.New("no papers found")

// Client queries the arXiv Atom API.
type Client struct {
	baseURL string
	client  *http.Client
}

// Paper is one arXiv entry.
type Paper struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	Published       time.Time `json:"published"`
	Updated         time.Time `json:"updated"`
	Authors         []string  `json:"authors"`
	PDFURL          string    `json:"pdf_url"`
	AbsURL          string    `json:"abs_url"`
	Categories      []string  `json:"categories"`
	PrimaryCategory string    `json:"primary_category"`
	Comment         string    `json:"comment"`
	JournalRef      string    `json:"journal_ref"`
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// UseDefaultClient makes the client use http.DefaultClient so tests can
// intercept requests with a mock transport.
func (c *Client) UseDefaultClient() {
	c.client = http.DefaultClient
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	ID              string         `xml:"id"`
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`
	Published       string         `xml:"published"`
	Updated         string         `xml:"updated"`
	Authors         []atomAuthor   `xml:"author"`
	Links           []atomLink     `xml:"link"`
	Categories      []atomCategory `xml:"category"`
	PrimaryCategory atomCategory   `xml:"primary_category"`
	Comment         string         `xml:"comment"`
	JournalRef      string         `xml:"journal_ref"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Total   int         `xml:"totalResults"`
	Entries []atomEntry `xml:"entry"`
}

// Search runs an arXiv API query, newest submissions first.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Paper, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	if maxResults <= 0 {
		maxResults = 10
	}

	u, _ := url.Parse(c.baseURL)
	q := u.Query()
	q.Set("search_query", query)
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call arXiv: %w", err)
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv error %d: %s", resp.StatusCode, string(buf))
	}

	var feed atomFeed
	if err := xml.Unmarshal(buf, &feed); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	if len(feed.Entries) == 0 {
		return nil, ErrNoResults
	}

	// The API signals malformed queries as a single entry titled "Error".
	if len(feed.Entries) == 1 && strings.EqualFold(strings.TrimSpace(feed.Entries[0].Title), "error") {
		return nil, fmt.Errorf("arXiv rejected query %q: %s", query, normalizeSpace(feed.Entries[0].Summary))
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		papers = append(papers, parseEntry(entry))
	}

	return papers, nil
}

func parseEntry(entry atomEntry) Paper {
	paper := Paper{
		ID:              arxivID(entry.ID),
		Title:           normalizeSpace(entry.Title),
		Summary:         normalizeSpace(entry.Summary),
		AbsURL:          entry.ID,
		PrimaryCategory: entry.PrimaryCategory.Term,
		Comment:         normalizeSpace(entry.Comment),
		JournalRef:      normalizeSpace(entry.JournalRef),
	}

	if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		paper.Published = t
	}
	if t, err := time.Parse(time.RFC3339, entry.Updated); err == nil {
		paper.Updated = t
	}

	for _, author := range entry.Authors {
		if name := strings.TrimSpace(author.Name); name != "" {
			paper.Authors = append(paper.Authors, name)
		}
	}

	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			paper.PDFURL = link.Href
		}
	}

	for _, category := range entry.Categories {
		if category.Term != "" {
			paper.Categories = append(paper.Categories, category.Term)
		}
	}

	return paper
}

// arxivID extracts the bare id ("2401.01234v1") from the entry id URL.
func arxivID(entryID string) string {
	if idx := strings.LastIndex(entryID, "/abs/"); idx >= 0 {
		return entryID[idx+len("/abs/"):]
	}
	return entryID
}

// normalizeSpace collapses the newline-wrapped whitespace the feed carries.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
