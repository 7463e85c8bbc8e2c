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

const sephoraBaseURL = "https://www.sephora.fr"

// sephoraIDRe matches the listing id in product URLs, e.g.
// /p/daily-microfoliant-P123456.html -> P123456.
var sephoraIDRe = regexp.MustCompile(`P(\d+)`)

// Sephora extracts product tiles from sephora.fr listing pages.
type Sephora struct {
	client *Client
}

func NewSephora(client *Client) *Sephora {
	return &Sephora{client: client}
}

func (s *Sephora) Site() string { return "sephora" }

func (s *Sephora) FetchPage(ctx context.Context, page int, category string) ([]models.RawRecord, error) {
	path := "/shop/soin-visage-c302/"
	if category != "" {
		path = "/shop/" + strings.Trim(category, "/") + "/"
	}
	url := fmt.Sprintf("%s%s?page=%d", sephoraBaseURL, path, page)

	doc, err := s.client.GetDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	return extractSephora(doc), nil
}

func extractSephora(doc *goquery.Document) []models.RawRecord {
	var records []models.RawRecord

	doc.Find(`[data-comp="ProductTile"]`).Each(func(_ int, tile *goquery.Selection) {
		name := strings.TrimSpace(tile.Find(`[data-comp="ProductName"]`).First().Text())
		brand := strings.TrimSpace(tile.Find(`[data-comp="BrandName"]`).First().Text())
		priceText := strings.TrimSpace(tile.Find(`[data-comp="Price"]`).First().Text())

		url, _ := tile.Find("a").First().Attr("href")
		if url != "" && !strings.HasPrefix(url, "http") {
			url = sephoraBaseURL + url
		}
		imageURL, _ := tile.Find("img").First().Attr("src")

		records = append(records, models.RawRecord{
			ProductID: sephoraProductID(url),
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

// sephoraProductID pulls the listing id out of the product URL, falling
// back to the last path segment so an unrecognized URL shape still yields
// a stable identity.
func sephoraProductID(url string) string {
	if m := sephoraIDRe.FindString(url); m != "" {
		return m
	}
	segments := strings.Split(strings.TrimSuffix(url, "/"), "/")
	last := segments[len(segments)-1]
	if len(last) > 50 {
		last = last[:50]
	}
	return last
}
