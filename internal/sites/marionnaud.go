package sites

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lmichel/beautytrack/internal/models"
	"github.com/lmichel/beautytrack/internal/parser"
)

const marionnaudBaseURL = "https://www.marionnaud.fr"

// Marionnaud extracts product tiles from marionnaud.fr listing pages.
type Marionnaud struct {
	client *Client
}

func NewMarionnaud(client *Client) *Marionnaud {
	return &Marionnaud{client: client}
}

func (m *Marionnaud) Site() string { return "marionnaud" }

func (m *Marionnaud) FetchPage(ctx context.Context, page int, category string) ([]models.RawRecord, error) {
	path := "/soin-visage"
	if category != "" {
		path = "/" + strings.Trim(category, "/")
	}
	// Marionnaud paginates zero-based.
	url := fmt.Sprintf("%s%s?currentPage=%d", marionnaudBaseURL, path, page-1)

	doc, err := m.client.GetDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	return extractMarionnaud(doc), nil
}

func extractMarionnaud(doc *goquery.Document) []models.RawRecord {
	var records []models.RawRecord

	doc.Find(".product-item").Each(func(_ int, tile *goquery.Selection) {
		name := strings.TrimSpace(tile.Find(".product-item__title").First().Text())
		brand := strings.TrimSpace(tile.Find(".product-item__brand").First().Text())
		priceText := strings.TrimSpace(tile.Find(".product-item__price").First().Text())

		url, _ := tile.Find("a").First().Attr("href")
		if url != "" && !strings.HasPrefix(url, "http") {
			url = marionnaudBaseURL + url
		}
		imageURL, _ := tile.Find("img").First().Attr("src")

		// The SKU is carried on the tile itself; fall back to the URL
		// slug when missing.
		productID, _ := tile.Attr("data-product-code")
		if productID == "" {
			segments := strings.Split(strings.TrimSuffix(url, "/"), "/")
			productID = segments[len(segments)-1]
			if len(productID) > 50 {
				productID = productID[:50]
			}
		}

		records = append(records, models.RawRecord{
			ProductID: productID,
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
