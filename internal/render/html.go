package render

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoTbody is returned when a fragment contains no <tbody> element.
var ErrNoTbody = errors.New("fragment has no <tbody> element")

// Field is one row of the status table.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ParseTbody parses a <tbody>…</tbody> fragment and returns its rows.
//
// Each direct <tr> of the first <tbody> contributes one field: the text of its
// first cell is the key, the text of its second cell (nested tables included,
// whitespace collapsed) is the value. Rows with fewer than two cells are
// skipped.
func ParseTbody(fragment string) ([]Field, error) {
	table := &html.Node{Type: html.ElementNode, DataAtom: atom.Table, Data: atom.Table.String()}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), table)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	var tbody *html.Node
	for _, n := range nodes {
		if tbody = findElement(n, atom.Tbody); tbody != nil {
			break
		}
	}
	if tbody == nil {
		return nil, ErrNoTbody
	}

	fields := []Field{}
	for tr := tbody.FirstChild; tr != nil; tr = tr.NextSibling {
		if tr.Type != html.ElementNode || tr.DataAtom != atom.Tr {
			continue
		}
		var cells []*html.Node
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
				cells = append(cells, c)
			}
		}
		if len(cells) < 2 {
			continue
		}
		fields = append(fields, Field{Key: textOf(cells[0]), Value: textOf(cells[1])})
	}
	return fields, nil
}

// Tbody renders fields as <tbody> markup with one two-cell row per field.
// Keys and values are escaped.
func Tbody(fields []Field) (string, error) {
	tbody := element(atom.Tbody)
	for _, f := range fields {
		tr := element(atom.Tr)
		tr.AppendChild(cell(f.Key))
		tr.AppendChild(cell(f.Value))
		tbody.AppendChild(tr)
	}

	var b strings.Builder
	if err := html.Render(&b, tbody); err != nil {
		return "", fmt.Errorf("failed to render tbody: %w", err)
	}
	return b.String(), nil
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func cell(text string) *html.Node {
	td := element(atom.Td)
	td.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return td
}

// findElement returns the first element with the given atom in document order.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// textOf returns the whitespace-collapsed text content of n.
func textOf(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
