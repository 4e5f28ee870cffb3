package renderer

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Metadata is the advisory page information pulled from a rendered document
type Metadata struct {
	Title        *string
	Description  *string
	CanonicalURL *string
}

// ExtractMetadata scans doc for the first <title>, meta description and
// canonical link. Missing or empty values stay nil.
func ExtractMetadata(doc string) Metadata {
	var md Metadata
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return md
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.DataAtom {
			case atom.Title:
				inTitle = md.Title == nil
			case atom.Meta:
				if md.Description == nil && strings.EqualFold(attr(token, "name"), "description") {
					md.Description = nonEmpty(attr(token, "content"))
				}
			case atom.Link:
				if md.CanonicalURL == nil && hasRel(attr(token, "rel"), "canonical") {
					md.CanonicalURL = nonEmpty(attr(token, "href"))
				}
			}
		case html.TextToken:
			if inTitle {
				md.Title = nonEmpty(string(tokenizer.Text()))
				inTitle = false
			}
		case html.EndTagToken:
			inTitle = false
		}
	}
}

func attr(token html.Token, key string) string {
	for _, a := range token.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasRel(rel, want string) bool {
	for _, r := range strings.Fields(rel) {
		if strings.EqualFold(r, want) {
			return true
		}
	}
	return false
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
