package domain

import "fmt"

type StockRecord struct {
	ProductID string `db:"product_id" json:"productId"`
	Qty       int    `db:"qty" json:"qty"`
	UpdatedAt string `db:"updated_at" json:"updatedAt,omitempty"`
}

// StockItem is one (product, quantity) entry of a batch ledger call.
type StockItem struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// StockLevel reports the before/after quantities of one item of an applied
// batch, for audit logging.
type StockLevel struct {
	ProductID string `json:"productId"`
	Previous  int    `json:"previous"`
	Current   int    `json:"current"`
}

type stockOp int

const (
	stockOpIncrement stockOp = iota
	stockOpDecrement
	stockOpSet
)

// StockAdjustment is a closed set of ledger mutations. Construct one through
// IncrementBy, DecrementBy or SetTo; an invalid operation cannot be built.
type StockAdjustment struct {
	ProductID string
	op        stockOp
	amount    int
}

func IncrementBy(productID string, n int) (StockAdjustment, error) {
	if n <= 0 {
		return StockAdjustment{}, fmt.Errorf("increment must be positive, got %d", n)
	}
	return StockAdjustment{ProductID: productID, op: stockOpIncrement, amount: n}, nil
}

func DecrementBy(productID string, n int) (StockAdjustment, error) {
	if n <= 0 {
		return StockAdjustment{}, fmt.Errorf("decrement must be positive, got %d", n)
	}
	return StockAdjustment{ProductID: productID, op: stockOpDecrement, amount: n}, nil
}

func SetTo(productID string, n int) (StockAdjustment, error) {
	if n < 0 {
		return StockAdjustment{}, fmt.Errorf("stock level cannot be negative, got %d", n)
	}
	return StockAdjustment{ProductID: productID, op: stockOpSet, amount: n}, nil
}

func (a StockAdjustment) IsIncrement() bool { return a.op == stockOpIncrement }
func (a StockAdjustment) IsDecrement() bool { return a.op == stockOpDecrement }
func (a StockAdjustment) IsSet() bool       { return a.op == stockOpSet }
func (a StockAdjustment) Amount() int       { return a.amount }
