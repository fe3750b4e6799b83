package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// AbsPage is the extra metadata scraped from a paper's landing page. The
// Atom feed omits some of it (subjects line, DOI) for older entries.
type AbsPage struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Subjects string   `json:"subjects"`
	DOI      string   `json:"doi"`
}

// Enrich backfills title and authors from the landing page when the feed
// entry omitted them. Papers that already carry both are left untouched.
func (c *Client) Enrich(ctx context.Context, paper *Paper) error {
	if paper.AbsURL == "" {
		return nil
	}

	if paper.Title != "" && len(paper.Authors) > 0 {
		return nil
	}

	page, err := c.FetchAbsPage(ctx, paper.AbsURL)
	if err != nil {
		return err
	}

	if paper.Title == "" {
		paper.Title = page.Title
	}

	if len(paper.Authors) == 0 {
		paper.Authors = page.Authors
	}

	return nil
}

// FetchAbsPage scrapes citation metadata from an arxiv.org/abs/ page.
func (c *Client) FetchAbsPage(ctx context.Context, absURL string) (*AbsPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, absURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch abs page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("abs page error %d for %s", resp.StatusCode, absURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse abs page: %w", err)
	}

	page := &AbsPage{}

	doc.Find(`meta[name="citation_title"]`).Each(func(_ int, sel *goquery.Selection) {
		page.Title, _ = sel.Attr("content")
	})

	doc.Find(`meta[name="citation_author"]`).Each(func(_ int, sel *goquery.Selection) {
		if author, ok := sel.Attr("content"); ok {
			page.Authors = append(page.Authors, author)
		}
	})

	doc.Find(`meta[name="citation_doi"]`).Each(func(_ int, sel *goquery.Selection) {
		page.DOI, _ = sel.Attr("content")
	})

	subjects := doc.Find("td.subjects").First()
	page.Subjects = strings.TrimSpace(subjects.Text())

	return page, nil
}
