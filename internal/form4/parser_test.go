package form4

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bighogz/form4-screener/internal/models"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

var filed = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

func TestParseDocument_OwnershipXML(t *testing.T) {
	ref := models.FilingReference{Company: "ACME WIDGETS INC", URL: "https://www.sec.gov/a.xml", Filed: filed}

	detail, err := ParseDocument(fixture(t, "purchase.xml"), ref)

	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "Acme Widgets Inc", detail.Issuer)
	assert.Equal(t, "Doe Jane", detail.Insider)
	assert.Equal(t, "ACME", detail.Ticker)
	assert.True(t, detail.Value.Equal(dec("150000")), "got %s", detail.Value)
	assert.Equal(t, "computed", detail.Strategy)
	assert.Equal(t, 1, detail.Transactions)
	assert.Equal(t, ref.URL, detail.URL)
	assert.Equal(t, filed, detail.Filed)
}

func TestParseDocument_FullSubmissionWithCharset(t *testing.T) {
	ref := models.FilingReference{Company: "CAFE HOLDINGS", URL: "https://www.sec.gov/x-index.htm", Filed: filed}

	detail, err := ParseDocument(fixture(t, "submission.txt"), ref)

	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "Café Holdings Corp", detail.Issuer)
	assert.Equal(t, "Smith John; Smith Family Trust", detail.Insider)
	// 130,000 explicit + 2,000 x 12.75 computed
	assert.True(t, detail.Value.Equal(dec("155500")), "got %s", detail.Value)
	assert.Equal(t, "explicit", detail.Strategy)
	assert.Equal(t, 2, detail.Transactions)
}

func TestParseDocument_DegradedHTML(t *testing.T) {
	ref := models.FilingReference{Company: "Legacy Corp", URL: "https://www.sec.gov/legacy.htm", Filed: filed}

	detail, err := ParseDocument(fixture(t, "degraded.html"), ref)

	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "Legacy Corp", detail.Issuer)
	assert.Equal(t, unknownInsider, detail.Insider)
	// 2,500 x $80.00 from the first row, $45,500 text-scanned from the third
	assert.True(t, detail.Value.Equal(dec("245500")), "got %s", detail.Value)
	assert.Equal(t, "computed", detail.Strategy)
	assert.Equal(t, 2, detail.Transactions)
}

func TestParseDocument_PlainTextFallback(t *testing.T) {
	doc := []byte("TABLE I\nCommon Stock 10/15/2026 P 300 A $20.00 1,300 D\nCommon Stock 10/15/2026 S 50 D $21.00 1,250 D\n")
	ref := models.FilingReference{Company: "Paper Filer Co", URL: "u"}

	detail, err := ParseDocument(doc, ref)

	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.True(t, detail.Value.Equal(dec("6000")), "got %s", detail.Value)
	assert.Equal(t, 1, detail.Transactions)
}

func TestParseDocument_DegradedSaleWithStrayP(t *testing.T) {
	docs := map[string]string{
		"class title": "TABLE I\nClass P Common 10/15/2026 S 5000 D $20.00 1,300 D\n",
		"initial":     "TABLE I\nCommon Stock 10/15/2026 S 5000 D $20.00 1,300 I By John P Smith Trust\n",
		"html":        `<table><tr><td>Class P Common</td><td>10/15/2026</td><td>S</td><td>5000</td><td>D</td><td>$20.00</td><td>P</td></tr></table>`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			detail, err := ParseDocument([]byte(doc), models.FilingReference{Company: "Seller Co"})

			assert.NoError(t, err)
			assert.Nil(t, detail)
		})
	}
}

func TestParseDocument_DegradedSplitDollarSign(t *testing.T) {
	docs := map[string]string{
		"text": "TABLE I\nCommon Stock 10/15/2026 P 300 A $ 20.00 1,300 D\n",
		"html": `<table><tr><td>Common Stock</td><td>10/15/2026</td><td>P</td><td>300</td><td>A</td><td>$</td><td>20.00</td><td>1,300</td><td>D</td></tr></table>`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			detail, err := ParseDocument([]byte(doc), models.FilingReference{Company: "Paper Filer Co"})

			require.NoError(t, err)
			require.NotNil(t, detail)
			assert.True(t, detail.Value.Equal(dec("6000")), "got %s", detail.Value)
			assert.Equal(t, "computed", detail.Strategy)
		})
	}
}

func TestRowTransaction_TextScanAcrossSplitDollar(t *testing.T) {
	tx, ok := rowTransaction([]string{"Common Stock", "10/15/2026", "P", "see note", "A", "Aggregate", "$", "45,500", "paid"})

	require.True(t, ok)
	assert.Equal(t, "Common Stock 10/15/2026 P see note A Aggregate $45,500 paid", tx.Raw)
	ex := Extract(tx)
	assert.Equal(t, TextScan, ex.Strategy)
	assert.True(t, ex.Value.Equal(dec("45500")), "got %s", ex.Value)
}

func TestParseDocument_NoPurchase(t *testing.T) {
	doc := []byte(`<ownershipDocument><issuer><issuerName>Seller Inc</issuerName></issuer>
<nonDerivativeTable><nonDerivativeTransaction><transactionCoding><transactionCode>S</transactionCode></transactionCoding>
<transactionAmounts><transactionShares><value>100000</value></transactionShares><transactionPricePerShare><value>99</value></transactionPricePerShare></transactionAmounts>
</nonDerivativeTransaction></nonDerivativeTable></ownershipDocument>`)

	detail, err := ParseDocument(doc, models.FilingReference{Company: "Seller Inc"})

	assert.NoError(t, err)
	assert.Nil(t, detail)
}

func TestParseDocument_DerivativePurchaseCounts(t *testing.T) {
	doc := []byte(`<ownershipDocument><issuer><issuerName>Option Co</issuerName></issuer>
<derivativeTable><derivativeTransaction><transactionCoding><transactionCode>P</transactionCode></transactionCoding>
<transactionAmounts><transactionShares><value>400</value></transactionShares><transactionPricePerShare><value>2.5</value></transactionPricePerShare></transactionAmounts>
</derivativeTransaction></derivativeTable></ownershipDocument>`)

	detail, err := ParseDocument(doc, models.FilingReference{})

	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "Option Co", detail.Issuer)
	assert.True(t, detail.Value.Equal(dec("1000")), "got %s", detail.Value)
}

func TestParser_Parse_ResolvesIndexPage(t *testing.T) {
	f := new(MockFetcher)
	f.On("Get", "https://www.sec.gov/Archives/edgar/data/1/000112760226012345/0001127602-26-012345.txt").
		Return(fixture(t, "submission.txt"), nil)
	p := NewParser(f)
	ref := models.FilingReference{
		Company: "CAFE HOLDINGS",
		URL:     "https://www.sec.gov/Archives/edgar/data/1/000112760226012345/0001127602-26-012345-index.htm",
	}

	detail, err := p.Parse(context.Background(), ref)

	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, ref.URL, detail.URL)
	f.AssertExpectations(t)
}

func TestParser_Parse_FetchError(t *testing.T) {
	f := new(MockFetcher)
	f.On("Get", "https://www.sec.gov/gone.xml").Return(nil, eris.New("boom"))
	p := NewParser(f)

	detail, err := p.Parse(context.Background(), models.FilingReference{URL: "https://www.sec.gov/gone.xml"})

	assert.Error(t, err)
	assert.Nil(t, detail)
}

func TestDocumentURL(t *testing.T) {
	assert.Equal(t, "https://x/0001-26-1.txt", DocumentURL("https://x/0001-26-1-index.htm"))
	assert.Equal(t, "https://x/0001-26-1.txt", DocumentURL("https://x/0001-26-1-index.html"))
	assert.Equal(t, "https://x/form4.xml", DocumentURL("https://x/form4.xml"))
}

func TestRowTransaction_NeedsTransactionDate(t *testing.T) {
	_, ok := rowTransaction([]string{"Class", "P", "Common", "300", "$20.00"})

	assert.False(t, ok)
}
