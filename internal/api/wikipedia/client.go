package wikipedia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	httpClient "github.com/Alias1177/insighthub/internal/platform/http"
)

const sp500URL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// ErrColumnNotFound is returned when the first table lacks the requested header
var ErrColumnNotFound = errors.New("column not found")

// Client scrapes index constituent tables
type Client struct {
	pageURL    string
	httpClient *httpClient.Client
}

// NewClient creates a scraper. An empty pageURL selects the S&P 500 page.
func NewClient(hc *httpClient.Client, pageURL string) *Client {
	if pageURL == "" {
		pageURL = sp500URL
	}
	return &Client{pageURL: pageURL, httpClient: hc}
}

// SP500Symbols returns the Symbol column of the constituents table
func (c *Client) SP500Symbols(ctx context.Context) ([]string, error) {
	body, err := c.httpClient.Get(ctx, c.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents page: %w", err)
	}
	return FirstTableColumn(bytes.NewReader(body), "Symbol")
}

// FirstTableColumn extracts one column of the first <table> in the document
func FirstTableColumn(r io.Reader, column string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := find(doc, "table")
	if table == nil {
		return nil, errors.New("no table in document")
	}

	col := -1
	var values []string
	for _, row := range findAll(table, "tr") {
		rowCells := cells(row)
		if col < 0 {
			for i, cell := range rowCells {
				if strings.EqualFold(text(cell), column) {
					col = i
				}
			}
			continue
		}
		if col < len(rowCells) {
			if v := text(rowCells[col]); v != "" {
				values = append(values, v)
			}
		}
	}

	if col < 0 {
		return nil, ErrColumnNotFound
	}
	return values, nil
}

func find(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func cells(row *html.Node) []*html.Node {
	var out []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			out = append(out, c)
		}
	}
	return out
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
