package sites

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractSephora(t *testing.T) {
	doc := mustDoc(t, `
		<div data-comp="ProductTile">
			<a href="/p/daily-microfoliant-P123456.html"><img src="/img/p123456.jpg"></a>
			<span data-comp="BrandName">Dermalogica</span>
			<span data-comp="ProductName">Daily Microfoliant</span>
			<span data-comp="Price">59,00 &euro;</span>
		</div>
		<div data-comp="ProductTile">
			<a href="https://www.sephora.fr/p/c-e-ferulic-P654321.html"><img src="/img/p654321.jpg"></a>
			<span data-comp="BrandName">SkinCeuticals</span>
			<span data-comp="ProductName">C E Ferulic</span>
			<span data-comp="Price">165,00 &euro;</span>
		</div>`)

	records := extractSephora(doc)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "P123456", first.ProductID)
	assert.Equal(t, "Daily Microfoliant", first.Name)
	assert.Equal(t, "Dermalogica", first.Brand)
	assert.Equal(t, 59.0, first.Price)
	assert.Equal(t, "EUR", first.Currency)
	assert.Equal(t, "https://www.sephora.fr/p/daily-microfoliant-P123456.html", first.URL)
	assert.Equal(t, "/img/p123456.jpg", first.ImageURL)

	second := records[1]
	assert.Equal(t, "P654321", second.ProductID)
	assert.Equal(t, 165.0, second.Price)
	assert.Equal(t, "https://www.sephora.fr/p/c-e-ferulic-P654321.html", second.URL)
}

func TestExtractSephoraEmptyPage(t *testing.T) {
	doc := mustDoc(t, `<div class="no-results">Aucun produit</div>`)
	assert.Empty(t, extractSephora(doc))
}

func TestSephoraProductIDFallback(t *testing.T) {
	assert.Equal(t, "P123456", sephoraProductID("/p/daily-microfoliant-P123456.html"))
	assert.Equal(t, "some-unusual-slug", sephoraProductID("/shop/some-unusual-slug/"))
}

func TestExtractNocibe(t *testing.T) {
	doc := mustDoc(t, `
		<div class="product-tile">
			<a href="/fr/p/creme-hydratante-s512345"><img src="https://cdn.nocibe.fr/512345.jpg"></a>
			<div class="product-tile__brand">Clinique</div>
			<div class="product-tile__name">Moisture Surge</div>
			<div class="product-tile__price">39,90 &euro;</div>
		</div>`)

	records := extractNocibe(doc)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "s512345", rec.ProductID)
	assert.Equal(t, "Moisture Surge", rec.Name)
	assert.Equal(t, "Clinique", rec.Brand)
	assert.Equal(t, 39.90, rec.Price)
	assert.Equal(t, "EUR", rec.Currency)
	assert.Equal(t, "https://www.nocibe.fr/fr/p/creme-hydratante-s512345", rec.URL)
}

func TestExtractMarionnaud(t *testing.T) {
	doc := mustDoc(t, `
		<div class="product-item" data-product-code="MAR-88231">
			<a href="/p/niacinamide-10/88231"><img src="/img/88231.jpg"></a>
			<div class="product-item__brand">The Ordinary</div>
			<div class="product-item__title">Niacinamide 10% + Zinc 1%</div>
			<div class="product-item__price">6,50 &euro;</div>
		</div>
		<div class="product-item">
			<a href="/p/umbrian-clay-mask/77110"><img src="/img/77110.jpg"></a>
			<div class="product-item__brand">Fresh</div>
			<div class="product-item__title">Umbrian Clay Mask</div>
			<div class="product-item__price">28,00 &euro;</div>
		</div>`)

	records := extractMarionnaud(doc)
	require.Len(t, records, 2)

	assert.Equal(t, "MAR-88231", records[0].ProductID)
	assert.Equal(t, "Niacinamide 10% + Zinc 1%", records[0].Name)
	assert.Equal(t, 6.50, records[0].Price)

	// Without a data-product-code the URL slug serves as identity.
	assert.Equal(t, "77110", records[1].ProductID)
	assert.Equal(t, "https://www.marionnaud.fr/p/umbrian-clay-mask/77110", records[1].URL)
}

func TestRegistry(t *testing.T) {
	client := NewClient(nil)

	for _, name := range []string{"sephora", "nocibe", "marionnaud"} {
		adapter, err := New(name, client)
		require.NoError(t, err)
		assert.Equal(t, name, adapter.Site())
	}

	_, err := New("douglas", client)
	var unknown *ErrUnknownSite
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "douglas", unknown.Site)

	assert.ElementsMatch(t, []string{"sephora", "nocibe", "marionnaud"}, Names())
}
