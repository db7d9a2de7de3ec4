package x402

// Offer is the configuration a payment-requirement document is built from
type Offer struct {
	Network           string // CAIP-2 network identifier
	MaxAmountRequired string // atomic units, string-encoded integer
	Resource          string
	Description       string
	MimeType          string
	PayTo             string
	MaxTimeoutSeconds int
	Asset             string
	AssetSymbol       string
}

// BuildPaymentRequired builds the document advertising the single offer this
// gateway accepts. No chain access; pure function of configuration.
func BuildPaymentRequired(offer Offer) PaymentRequired {
	requirements := PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           offer.Network,
		MaxAmountRequired: offer.MaxAmountRequired,
		Resource:          offer.Resource,
		Description:       offer.Description,
		MimeType:          offer.MimeType,
		PayTo:             offer.PayTo,
		MaxTimeoutSeconds: offer.MaxTimeoutSeconds,
		Asset:             offer.Asset,
		OutputSchema: &OutputSchema{
			Input: SchemaObject{
				Type: "object",
				Properties: map[string]SchemaField{
					"resource": {Type: "string", Description: "Resource identifier from this document"},
					"txHash":   {Type: "string", Description: "Hash of the payment transaction"},
				},
				Required: []string{"resource", "txHash"},
			},
			Output: SchemaObject{
				Type: "object",
				Properties: map[string]SchemaField{
					"ok":        {Type: "boolean"},
					"mintedTo":  {Type: "string", Description: "Recipient of the minted token"},
					"nftTxHash": {Type: "string", Description: "Hash of the mint transaction"},
				},
			},
		},
	}

	if offer.AssetSymbol != "" {
		requirements.Extra = map[string]string{"name": offer.AssetSymbol}
	}

	return PaymentRequired{
		X402Version: X402Version,
		Accepts:     []PaymentRequirements{requirements},
	}
}
