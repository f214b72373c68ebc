package domain

type Product struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Description string  `db:"description" json:"description,omitempty"`
	Price       float64 `db:"price" json:"price"`
	Active      bool    `db:"active" json:"active"`
	CreatedAt   string  `db:"created_at" json:"createdAt"`
	UpdatedAt   string  `db:"updated_at" json:"updatedAt,omitempty"`
}

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty,omitempty"`
}

type QuoteStatus string

const (
	QuoteStatusPending   QuoteStatus = "pending"
	QuoteStatusPaid      QuoteStatus = "paid"
	QuoteStatusCancelled QuoteStatus = "cancelled"
	QuoteStatusExpired   QuoteStatus = "expired"
)

type Quote struct {
	ID            string      `db:"id" json:"id"`
	QuoteNumber   string      `db:"quote_number" json:"quoteNumber"`
	CustomerName  string      `db:"customer_name" json:"customerName"`
	CustomerEmail string      `db:"customer_email" json:"customerEmail,omitempty"`
	CustomerPhone string      `db:"customer_phone" json:"customerPhone,omitempty"`
	DiscountPct   float64     `db:"discount_pct" json:"discountPct"`
	TaxPct        float64     `db:"tax_pct" json:"taxPct"`
	Subtotal      float64     `db:"subtotal" json:"subtotal"`
	Total         float64     `db:"total" json:"total"`
	Status        QuoteStatus `db:"status" json:"status"`
	Notes         string      `db:"notes" json:"notes,omitempty"`
	ExpiresAt     string      `db:"expires_at" json:"expiresAt"`
	PaymentID     string      `db:"payment_id" json:"paymentId,omitempty"`
	CreatedBy     string      `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt     string      `db:"created_at" json:"createdAt"`
	UpdatedAt     string      `db:"updated_at" json:"updatedAt,omitempty"`

	Lines []QuoteLine `json:"lines,omitempty"`
}

// QuoteLine freezes the product's name and price at quote-creation time.
// Later catalog edits never change an existing quote.
type QuoteLine struct {
	QuoteID     string  `db:"quote_id" json:"-"`
	ProductID   string  `db:"product_id" json:"productId"`
	ProductName string  `db:"product_name" json:"productName"`
	UnitPrice   float64 `db:"unit_price" json:"unitPrice"`
	Qty         int     `db:"qty" json:"qty"`
	Subtotal    float64 `db:"line_subtotal" json:"subtotal"`
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Terminal reports whether no further gateway outcome may change the status.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusApproved || s == PaymentStatusRejected || s == PaymentStatusCancelled
}

type Payment struct {
	ID                  string        `db:"id" json:"id"`
	QuoteID             string        `db:"quote_id" json:"quoteId"`
	GatewayPaymentID    string        `db:"gateway_payment_id" json:"gatewayPaymentId,omitempty"`
	GatewayPreferenceID string        `db:"gateway_preference_id" json:"gatewayPreferenceId,omitempty"`
	ExternalReference   string        `db:"external_reference" json:"externalReference"`
	Amount              float64       `db:"amount" json:"amount"`
	Status              PaymentStatus `db:"status" json:"status"`
	RawPayload          string        `db:"raw_payload" json:"-"`
	PaidAt              string        `db:"paid_at" json:"paidAt,omitempty"`
	CreatedAt           string        `db:"created_at" json:"createdAt"`
	UpdatedAt           string        `db:"updated_at" json:"updatedAt,omitempty"`
}

// Notification is an inbound gateway event as seen by the reconciler,
// after transport-level decoding.
type Notification struct {
	EventID          string
	Kind             string
	GatewayPaymentID string
	RawBody          []byte
}
