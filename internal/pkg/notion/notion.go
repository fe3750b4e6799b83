package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	notionVersion  = "2022-06-28"

	// Notion rejects rich_text contents longer than this.
	maxRichTextLen = 2000
)

var (
	// ErrMissingAPIKey is returned when NOTION_API_KEY was not configured.
	ErrMissingAPIKey = errors.New("NOTION_API_KEY is not set")
	// ErrMissingDatabaseID is returned when NOTION_DATABASE_ID was not configured.
	ErrMissingDatabaseID = errors.New("NOTION_DATABASE_ID is not set")
	// ErrInvalidDatabaseID is returned when the configured database id does not
	// look like a Notion database id, or when the API rejects it.
	ErrInvalidDatabaseID = errors.New("invalid Notion database id")
	// ErrUnauthorized is returned when the integration token is rejected.
	ErrUnauthorized = errors.New("Notion API key was rejected")
	// ErrNotShared is returned when the integration has no access to the
	// target database. The database has to be shared with the integration.
	ErrNotShared = errors.New("database is not shared with the integration")
	// ErrEmptyQuery is returned when the record has no query text.
	ErrEmptyQuery = errors.New("query must not be empty")
)

// Client talks to the Notion pages API for a single pre-shared database.
type Client struct {
	key        string
	databaseID string
	baseURL    string
	client     *http.Client
}

// SourcePaper is a paper reference rendered into the Sources section.
type SourcePaper struct {
	Title  string
	AbsURL string
	PDFURL string
}

// Record is one research summary to publish. CreatedAt defaults to now.
type Record struct {
	Query     string
	Title     string // derived from Query when empty
	Summary   string
	Papers    []SourcePaper
	CreatedAt time.Time
}

// Page identifies the created Notion page.
type Page struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// New builds a client for the given credentials. The base URL is only
// overridden by tests.
func New(apiKey, databaseID, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	if databaseID == "" {
		return nil, ErrMissingDatabaseID
	}

	if !validDatabaseID(databaseID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDatabaseID, databaseID)
	}

	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		key:        apiKey,
		databaseID: databaseID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// NewFromEnv builds a client from NOTION_API_KEY and NOTION_DATABASE_ID.
func NewFromEnv() (*Client, error) {
	return New(os.Getenv("NOTION_API_KEY"), os.Getenv("NOTION_DATABASE_ID"), os.Getenv("NOTION_BASE_URL"))
}

// UseDefaultClient makes the client use http.DefaultClient so tests can
// intercept requests with a mock transport.
func (c *Client) UseDefaultClient() {
	c.client = http.DefaultClient
}

// validDatabaseID checks the 32-hex-digit database id shape, dashes ignored.
func validDatabaseID(id string) bool {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) != 32 {
		return false
	}

	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}

	return true
}

type richText struct {
	Text struct {
		Content string `json:"content"`
		Link    *struct {
			URL string `json:"url"`
		} `json:"link,omitempty"`
	} `json:"text"`
}

func text(content string) richText {
	var rt richText
	rt.Text.Content = content
	return rt
}

func link(content, url string) richText {
	rt := text(content)
	rt.Text.Link = &struct {
		URL string `json:"url"`
	}{URL: url}
	return rt
}

type block struct {
	Object    string      `json:"object"`
	Type      string      `json:"type"`
	Heading2  *blockValue `json:"heading_2,omitempty"`
	Paragraph *blockValue `json:"paragraph,omitempty"`
	Bulleted  *blockValue `json:"bulleted_list_item,omitempty"`
}

type blockValue struct {
	RichText []richText `json:"rich_text"`
}

type pageRequest struct {
	Parent struct {
		DatabaseID string `json:"database_id"`
	} `json:"parent"`
	Properties map[string]interface{} `json:"properties"`
	Children   []block                `json:"children"`
}

type apiError struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateRecord publishes exactly one page into the configured database.
// Failures are terminal; the caller decides whether to report or drop them.
func (c *Client) CreateRecord(ctx context.Context, record Record) (*Page, error) {
	if strings.TrimSpace(record.Query) == "" {
		return nil, ErrEmptyQuery
	}

	if record.Title == "" {
		record.Title = DeriveTitle(record.Query)
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(c.buildPage(record))
	if err != nil {
		return nil, fmt.Errorf("marshal page: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call Notion: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.mapError(resp.StatusCode, body)
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode Notion response: %w", err)
	}

	return &page, nil
}

// mapError translates a Notion error body to the sentinel taxonomy.
func (c *Client) mapError(status int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return fmt.Errorf("Notion error %d: %s", status, string(body))
	}

	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrNotShared, apiErr.Message)
	case status == http.StatusNotFound && apiErr.Code == "object_not_found":
		// Notion reports an unshared database as not found.
		return fmt.Errorf("%w: %s", ErrNotShared, apiErr.Message)
	case status == http.StatusBadRequest && apiErr.Code == "validation_error":
		return fmt.Errorf("%w: %s", ErrInvalidDatabaseID, apiErr.Message)
	}

	return fmt.Errorf("Notion error %s: %s", apiErr.Code, apiErr.Message)
}

func (c *Client) buildPage(record Record) pageRequest {
	query := TruncateRunes(record.Query, maxRichTextLen)

	var page pageRequest
	page.Parent.DatabaseID = c.databaseID
	page.Properties = map[string]interface{}{
		"Name": map[string]interface{}{
			"title": []richText{text(record.Title)},
		},
		"Query": map[string]interface{}{
			"rich_text": []richText{text(query)},
		},
		"Created": map[string]interface{}{
			"date": map[string]string{
				"start": record.CreatedAt.Format(time.RFC3339),
			},
		},
	}

	page.Children = append(page.Children, block{
		Object:   "block",
		Type:     "heading_2",
		Heading2: &blockValue{RichText: []richText{text("Research Summary")}},
	})

	for _, chunk := range SplitChunks(record.Summary, maxRichTextLen) {
		page.Children = append(page.Children, block{
			Object:    "block",
			Type:      "paragraph",
			Paragraph: &blockValue{RichText: []richText{text(chunk)}},
		})
	}

	if len(record.Papers) > 0 {
		page.Children = append(page.Children, block{
			Object:   "block",
			Type:     "heading_2",
			Heading2: &blockValue{RichText: []richText{text("Sources")}},
		})

		for _, paper := range record.Papers {
			url := paper.AbsURL
			if url == "" {
				url = paper.PDFURL
			}

			item := blockValue{}
			if url != "" {
				item.RichText = []richText{link(paper.Title, url)}
			} else {
				item.RichText = []richText{text(paper.Title)}
			}

			page.Children = append(page.Children, block{
				Object:   "block",
				Type:     "bulleted_list_item",
				Bulleted: &item,
			})
		}
	}

	return page
}
