package sites

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lmichel/beautytrack/internal/models"
	"github.com/lmichel/beautytrack/internal/parser"
)

const nocibeBaseURL = "https://www.nocibe.fr"

// nocibeIDRe matches the trailing numeric id in product URLs, e.g.
// /fr/p/creme-hydratante-s512345 -> s512345.
var nocibeIDRe = regexp.MustCompile(`s(\d+)$`)

// Nocibe extracts product tiles from nocibe.fr listing pages.
type Nocibe struct {
	client *Client
}

func NewNocibe(client *Client) *Nocibe {
	return &Nocibe{client: client}
}

func (n *Nocibe) Site() string { return "nocibe" }

func (n *Nocibe) FetchPage(ctx context.Context, page int, category string) ([]models.RawRecord, error) {
	path := "/fr/soin-visage"
	if category != "" {
		path = "/fr/" + strings.Trim(category, "/")
	}
	url := fmt.Sprintf("%s%s?page=%d", nocibeBaseURL, path, page)

	doc, err := n.client.GetDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	return extractNocibe(doc), nil
}

func extractNocibe(doc *goquery.Document) []models.RawRecord {
	var records []models.RawRecord

	doc.Find(".product-tile").Each(func(_ int, tile *goquery.Selection) {
		name := strings.TrimSpace(tile.Find(".product-tile__name").First().Text())
		brand := strings.TrimSpace(tile.Find(".product-tile__brand").First().Text())
		priceText := strings.TrimSpace(tile.Find(".product-tile__price").First().Text())

		url, _ := tile.Find("a").First().Attr("href")
		if url != "" && !strings.HasPrefix(url, "http") {
			url = nocibeBaseURL + url
		}
		imageURL, _ := tile.Find("img").First().Attr("src")

		records = append(records, models.RawRecord{
			ProductID: nocibeProductID(url),
			Name:      name,
			Brand:     brand,
			Price:     parser.ParsePrice(priceText),
			Currency:  parser.ParseCurrency(priceText),
			URL:       url,
			ImageURL:  imageURL,
		})
	})

	return records
}

func nocibeProductID(url string) string {
	trimmed := strings.TrimSuffix(url, "/")
	if m := nocibeIDRe.FindString(trimmed); m != "" {
		return m
	}
	segments := strings.Split(trimmed, "/")
	last := segments[len(segments)-1]
	if len(last) > 50 {
		last = last[:50]
	}
	return last
}
