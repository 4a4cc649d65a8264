package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Element is the read-only view of a node the extractor needs
type Element interface {
	FindAll(selector string) []Element
	FindOne(selector string) (Element, bool)
	Text() string
	Attr(name string) (string, bool)
}

// Page is a rendered calendar page
type Page interface {
	FindAll(selector string) []Element
	FindOne(selector string) (Element, bool)
}

// Document is a parsed HTML snapshot of a page
type Document struct {
	doc *goquery.Document
}

// ParseHTML parses a page snapshot taken from the browser
func ParseHTML(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// FindAll returns every node matching selector in document order
func (d *Document) FindAll(selector string) []Element {
	return findAll(d.doc.Selection, selector)
}

// FindOne returns the first node matching selector
func (d *Document) FindOne(selector string) (Element, bool) {
	return findOne(d.doc.Selection, selector)
}

type node struct {
	sel *goquery.Selection
}

func (n node) FindAll(selector string) []Element {
	return findAll(n.sel, selector)
}

func (n node) FindOne(selector string) (Element, bool) {
	return findOne(n.sel, selector)
}

// Text returns the node text with runs of whitespace collapsed
func (n node) Text() string {
	return strings.Join(strings.Fields(n.sel.Text()), " ")
}

func (n node) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func findAll(s *goquery.Selection, selector string) []Element {
	found := s.Find(selector)
	out := make([]Element, 0, found.Length())
	found.Each(func(_ int, el *goquery.Selection) {
		out = append(out, node{sel: el})
	})
	return out
}

func findOne(s *goquery.Selection, selector string) (Element, bool) {
	found := s.Find(selector).First()
	if found.Length() == 0 {
		return nil, false
	}
	return node{sel: found}, true
}
