package listscrape

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/nexex18/Restorical-Wisconsin/models"
)

var (
	rowMatcher    = cascadia.MustCompile(`table tbody tr, .results-table tr, .grid-row`)
	detailMatcher = cascadia.MustCompile(`a[href*="botw-activity-detail"], a[href*="dsn="]`)

	reBRRTS = regexp.MustCompile(`(\d{2}-\d{2}-\d{6})`)
	reDSN   = regexp.MustCompile(`dsn=(\d+)`)
)

// ParseResults extracts site rows from a rendered results page.
//
// The results grid carries one site per row: a detail-page link holding
// the BRRTS number (and the dsn in its href), then activity name,
// address and status cells. Rows whose BRRTS number is already in known
// are skipped; newly seen numbers are added to known.
func ParseResults(pageHTML, baseURL, county string, known map[string]bool) []models.Site {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil
	}

	var sites []models.Site

	doc.FindMatcher(rowMatcher).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		var brrtsNumber, dsn, sourceURL string

		link := row.FindMatcher(detailMatcher).First()
		if link.Length() > 0 {
			if m := reBRRTS.FindStringSubmatch(strings.TrimSpace(link.Text())); m != nil {
				brrtsNumber = m[1]
			}
			href, _ := link.Attr("href")
			if m := reDSN.FindStringSubmatch(href); m != nil {
				dsn = m[1]
				if strings.HasPrefix(href, "/") {
					sourceURL = baseURL + href
				} else {
					sourceURL = href
				}
			}
		}

		// Fall back to scanning every cell for a BRRTS number.
		if brrtsNumber == "" {
			cells.EachWithBreak(func(_ int, cell *goquery.Selection) bool {
				if m := reBRRTS.FindStringSubmatch(strings.TrimSpace(cell.Text())); m != nil {
					brrtsNumber = m[1]
					return false
				}
				return true
			})
		}

		if brrtsNumber == "" || known[brrtsNumber] {
			return
		}
		known[brrtsNumber] = true

		site := models.Site{
			BRRTSNumber:  brrtsNumber,
			DetailSeqNo:  dsn,
			ActivityType: models.ActivityTypeFromBRRTS(brrtsNumber),
			County:       county,
			SourceURL:    sourceURL,
		}
		if cells.Length() > 1 {
			site.ActivityName = strings.TrimSpace(cells.Eq(1).Text())
		}
		if cells.Length() > 2 {
			site.Address = strings.TrimSpace(cells.Eq(2).Text())
		}
		if cells.Length() > 3 {
			site.Status = strings.TrimSpace(cells.Eq(3).Text())
		}

		sites = append(sites, site)
	})

	return sites
}
