// Package docparse extracts document records from the HTML fragments the
// relay brings back from the BOTW document widgets.
package docparse

import (
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/nexex18/Restorical-Wisconsin/models"
)

var (
	// downloadMatcher matches the DNR's own document download links.
	downloadMatcher = cascadia.MustCompile(`a[href*="download-document"]`)

	// anchorMatcher matches every link, for the external-document sweep.
	anchorMatcher = cascadia.MustCompile(`a[href]`)

	reDocSeqNo = regexp.MustCompile(`docSeqNo=(\d+)`)
)

// externalExts are URL substrings that mark a link as a document even
// when it does not go through download-document.
var externalExts = []string{".pdf", ".doc", ".xls", ".csv"}

// Documents parses all endpoint fragments of a relay result and returns
// the document links found, deduplicated by sequence number. Fragments
// shorter than a plausible minimum are skipped outright.
func Documents(resp *models.RelayResponse, baseURL string) []models.Document {
	var docs []models.Document
	seen := make(map[int]bool)

	for _, name := range models.EndpointNames {
		ep := resp.Endpoints[name]
		if ep == nil || len(ep.Body) < 10 {
			continue
		}
		docs = append(docs, parseFragment(ep.Body, baseURL, seen)...)
	}
	return docs
}

// parseFragment extracts documents from one HTML fragment.
func parseFragment(fragment, baseURL string, seen map[int]bool) []models.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var docs []models.Document

	// DNR download-document links carry a docSeqNo and sit in a table
	// row whose cells hold the metadata:
	// td[0]=icon/link, td[1]=description, td[2]=filename, td[3]=size.
	doc.FindMatcher(downloadMatcher).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		m := reDocSeqNo.FindStringSubmatch(href)
		if m == nil {
			return
		}
		seq, _ := strconv.Atoi(m[1])
		if seen[seq] {
			return
		}
		seen[seq] = true

		d := models.Document{
			DocSeqNo:    seq,
			DocumentURL: resolveDocURL(href, baseURL),
		}

		row := link.Closest("tr")
		if row.Length() > 0 {
			cells := row.Find("td")
			if cells.Length() >= 2 {
				d.Title = strings.TrimSpace(cells.Eq(1).Text())
			}
			if cells.Length() >= 3 {
				d.DocumentType = strings.TrimSpace(cells.Eq(2).Text())
			}
		} else {
			d.Title = strings.TrimSpace(link.Text())
		}

		docs = append(docs, d)
	})

	// Sweep for document-like links outside the download-document
	// mechanism (external PDFs and the like).
	doc.FindMatcher(anchorMatcher).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if href == "" || strings.Contains(href, "download-document") ||
			strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript") {
			return
		}
		if !hasDocumentExt(href) {
			return
		}

		var docURL string
		switch {
		case strings.HasPrefix(href, "/"):
			docURL = baseURL + href
		case strings.HasPrefix(href, "http"):
			docURL = href
		default:
			return
		}

		title := strings.TrimSpace(link.Text())
		if title == "" {
			return
		}

		// External documents have no docSeqNo; derive a stable pseudo
		// sequence from the URL so dedup still works.
		seq := pseudoSeq(docURL)
		if seen[seq] {
			return
		}
		seen[seq] = true

		d := models.Document{
			DocSeqNo:     seq,
			Title:        title,
			DocumentType: "External Link",
			DocumentURL:  docURL,
		}

		row := link.Closest("tr")
		if row.Length() > 0 {
			cells := row.Find("td")
			if cells.Length() >= 2 {
				d.DocumentDate = strings.TrimSpace(cells.Eq(1).Text())
			}
		}

		docs = append(docs, d)
	})

	return docs
}

func hasDocumentExt(href string) bool {
	lower := strings.ToLower(href)
	for _, ext := range externalExts {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// resolveDocURL turns a fragment href into an absolute document URL.
func resolveDocURL(href, baseURL string) string {
	switch {
	case strings.HasPrefix(href, "/"):
		return baseURL + href
	case strings.HasPrefix(href, "http"):
		return href
	default:
		return baseURL + "/rrbotw/" + href
	}
}

// pseudoSeq hashes a URL into the positive int32 range.
func pseudoSeq(u string) int {
	h := fnv.New32a()
	h.Write([]byte(u))
	return int(h.Sum32() & 0x7FFFFFFF)
}
