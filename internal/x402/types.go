// Package x402 emits the machine-readable payment-requirement document
// consumed by x402 payment-discovery clients.
package x402

// X402Version is the protocol version this gateway speaks
const X402Version = 1

// SchemeExact requires the exact configured amount
const SchemeExact = "exact"

// PaymentRequirements defines a single acceptable payment option. This is
// an element in the "accepts" array of PaymentRequired.
type PaymentRequirements struct {
	// Scheme is the payment scheme identifier (e.g., "exact").
	Scheme string `json:"scheme"`

	// Network is the blockchain network in CAIP-2 format (e.g., "eip155:8453").
	Network string `json:"network"`

	// MaxAmountRequired is the required amount in atomic units, string-encoded.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Resource is the identifier of the resource being paid for.
	Resource string `json:"resource"`

	// Description is a human-readable description of the offer.
	Description string `json:"description"`

	// MimeType is the content type of the response delivered after payment.
	MimeType string `json:"mimeType"`

	// PayTo is the treasury address receiving the payment.
	PayTo string `json:"payTo"`

	// MaxTimeoutSeconds is the validity period for the payment flow.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Asset is the payment token contract address.
	Asset string `json:"asset"`

	// Extra contains scheme-specific additional data (e.g., token symbol).
	Extra map[string]string `json:"extra,omitempty"`

	// OutputSchema describes the expected request and response bodies.
	OutputSchema *OutputSchema `json:"outputSchema,omitempty"`
}

// OutputSchema describes the POST exchange that settles the payment
type OutputSchema struct {
	Input  SchemaObject `json:"input"`
	Output SchemaObject `json:"output"`
}

// SchemaObject is a minimal JSON-schema-shaped field listing
type SchemaObject struct {
	Type       string                 `json:"type"`
	Properties map[string]SchemaField `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

// SchemaField describes one body field
type SchemaField struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// PaymentRequired is the payment-requirement document served on GET. The
// document content is the contract; deployments may serve it with either
// status 200 or 402.
type PaymentRequired struct {
	// X402Version is the protocol version.
	X402Version int `json:"x402Version"`

	// Error is a human-readable error message, set when the document is
	// served as a 402 rejection.
	Error string `json:"error,omitempty"`

	// Accepts is the list of payment options the server will accept.
	Accepts []PaymentRequirements `json:"accepts"`
}
