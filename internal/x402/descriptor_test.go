package x402_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkeletronCoreSkulls/apes2/internal/x402"
)

func testOffer() x402.Offer {
	return x402.Offer{
		Network:           "eip155:8453",
		MaxAmountRequired: "1000000",
		Resource:          "nft-mint",
		Description:       "Mint one token",
		MimeType:          "application/json",
		PayTo:             "0x1111111111111111111111111111111111111111",
		MaxTimeoutSeconds: 60,
		Asset:             "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		AssetSymbol:       "USDC",
	}
}

func TestBuildPaymentRequired(t *testing.T) {
	doc := x402.BuildPaymentRequired(testOffer())

	assert.Equal(t, 1, doc.X402Version)
	require.Len(t, doc.Accepts, 1)

	option := doc.Accepts[0]
	assert.Equal(t, x402.SchemeExact, option.Scheme)
	assert.Equal(t, "eip155:8453", option.Network)
	assert.Equal(t, "1000000", option.MaxAmountRequired)
	assert.Equal(t, "nft-mint", option.Resource)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", option.PayTo)
	assert.Equal(t, 60, option.MaxTimeoutSeconds)
	assert.Equal(t, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", option.Asset)
	assert.Equal(t, map[string]string{"name": "USDC"}, option.Extra)
}

func TestBuildPaymentRequired_OutputSchema(t *testing.T) {
	doc := x402.BuildPaymentRequired(testOffer())

	schema := doc.Accepts[0].OutputSchema
	require.NotNil(t, schema)
	assert.ElementsMatch(t, []string{"resource", "txHash"}, schema.Input.Required)
	assert.Contains(t, schema.Input.Properties, "resource")
	assert.Contains(t, schema.Input.Properties, "txHash")
	assert.Empty(t, schema.Output.Required)
	assert.Contains(t, schema.Output.Properties, "ok")
	assert.Contains(t, schema.Output.Properties, "mintedTo")
	assert.Contains(t, schema.Output.Properties, "nftTxHash")
}

func TestBuildPaymentRequired_NoSymbolOmitsExtra(t *testing.T) {
	offer := testOffer()
	offer.AssetSymbol = ""

	doc := x402.BuildPaymentRequired(offer)

	assert.Nil(t, doc.Accepts[0].Extra)
}

func TestBuildPaymentRequired_AmountStaysStringInJSON(t *testing.T) {
	// Atomic amounts exceed float precision, so the amount must never
	// serialize as a number
	offer := testOffer()
	offer.MaxAmountRequired = "115792089237316195423570985008687907853269984665640564039457"

	raw, err := json.Marshal(x402.BuildPaymentRequired(offer))

	require.NoError(t, err)
	assert.Contains(t, string(raw), `"maxAmountRequired":"115792089237316195423570985008687907853269984665640564039457"`)
}
