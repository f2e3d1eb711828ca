// Package preprocess normalises knowledge base text before it is indexed.
// Records edited through CMS webhooks often carry HTML fragments; they are
// reduced to plain paragraphs so keyword scoring and fact extraction see the
// same words a reader would.
package preprocess

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var (
	reSpaces   = regexp.MustCompile(`[ \t]+`)
	reNewlines = regexp.MustCompile(`\n{3,}`)
	reTag      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

	replacer = strings.NewReplacer(
		"ﬁ", "fi", "ﬂ", "fl",
		"—", "-", "–", "-",
		"•", "-", " ", " ",
		"&nbsp;", " ",
	)

	noiseMarkers = []string{
		"cookie policy", "privacy policy", "advertisement", "subscribe to our newsletter",
		"all rights reserved", "sponsored",
	}
)

// CleanBasic strips control characters, fixes common typographic artefacts
// and collapses whitespace.
func CleanBasic(text string) string {
	if text == "" {
		return ""
	}

	b := strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	b = replacer.Replace(b)
	b = reSpaces.ReplaceAllString(b, " ")
	b = reNewlines.ReplaceAllString(b, "\n\n")

	return strings.TrimSpace(b)
}

// LooksLikeHTML reports whether text contains markup tags.
func LooksLikeHTML(text string) bool {
	return reTag.MatchString(text)
}

// HTMLToText extracts headings, paragraphs, list items and tables.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	var out []string
	doc.Find("h1,h2,h3,h4,p,li,table").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		switch goquery.NodeName(s) {
		case "h1", "h2", "h3", "h4":
			if text != "" {
				out = append(out, text+".")
			}
		case "li":
			if text != "" {
				out = append(out, "- "+text)
			}
		case "table":
			if rows := parseTable(s); rows != "" {
				out = append(out, rows)
			}
		default:
			if text != "" {
				out = append(out, text)
			}
		}
	})
	if len(out) == 0 {
		// fragments without block elements, e.g. "<b>Open</b> all year"
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(out, "\n\n"), nil
}

func parseTable(sel *goquery.Selection) string {
	var rows []string
	sel.Find("tr").Each(func(i int, tr *goquery.Selection) {
		var cols []string
		tr.Find("th,td").Each(func(j int, td *goquery.Selection) {
			cols = append(cols, strings.TrimSpace(td.Text()))
		})
		if len(cols) > 0 {
			rows = append(rows, strings.Join(cols, ": "))
		}
	})
	return strings.Join(rows, "\n")
}

// RemoveDuplicateParagraphs drops repeated paragraphs, keeping the first.
func RemoveDuplicateParagraphs(text string) string {
	parts := strings.Split(text, "\n\n")
	seen := map[string]struct{}{}
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return strings.Join(out, "\n\n")
}

// RemoveWebNoise drops lines carrying site boilerplate.
func RemoveWebNoise(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		lower := strings.ToLower(l)
		skip := false
		for _, p := range noiseMarkers {
			if strings.Contains(lower, p) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// Preprocess converts markup to text when present and cleans the result.
func Preprocess(raw string) string {
	t := raw
	if LooksLikeHTML(t) {
		if text, err := HTMLToText(t); err == nil {
			t = text
		}
	}
	t = CleanBasic(t)
	t = RemoveWebNoise(t)
	t = RemoveDuplicateParagraphs(t)
	return t
}
