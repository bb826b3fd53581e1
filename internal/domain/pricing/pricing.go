// Package pricing resolves the unit price of an order line from the catalog
// price tiers.
package pricing

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/wholesale-orders/internal/domain/product"
)

// ErrInvalidQuantity is returned for non-positive line quantities.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// Tier names the price regime applied to a line.
type Tier string

const (
	TierRetail    Tier = "retail"
	TierWholesale Tier = "wholesale"
)

// Quote is the priced form of a single (product, quantity) pair. Product is
// the catalog snapshot the price was taken from.
type Quote struct {
	ProductID int64
	Product   product.Product
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	Tier      Tier
}

// UnitPrice returns the wholesale price when quantity reaches the product's
// wholesale minimum (inclusive) and the retail price otherwise.
func UnitPrice(p product.Product, quantity int) (decimal.Decimal, Tier, error) {
	if quantity <= 0 {
		return decimal.Zero, "", ErrInvalidQuantity
	}
	if !p.Active() {
		return decimal.Zero, "", product.ErrUnavailable
	}
	if quantity >= p.WholesaleMinQty {
		return p.WholesalePrice, TierWholesale, nil
	}
	return p.RetailPrice, TierRetail, nil
}

// QuoteFor prices quantity units of p.
func QuoteFor(p product.Product, quantity int) (Quote, error) {
	price, tier, err := UnitPrice(p, quantity)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		ProductID: p.ID,
		Product:   p,
		Quantity:  quantity,
		UnitPrice: price,
		Subtotal:  price.Mul(decimal.NewFromInt(int64(quantity))),
		Tier:      tier,
	}, nil
}

// Resolver prices lines by product id using the catalog.
type Resolver struct {
	catalog product.Repository
}

// NewResolver returns a Resolver reading products from catalog.
func NewResolver(catalog product.Repository) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve looks the product up and quotes quantity units of it.
func (r *Resolver) Resolve(ctx context.Context, productID int64, quantity int) (Quote, error) {
	if quantity <= 0 {
		return Quote{}, ErrInvalidQuantity
	}
	p, err := r.catalog.GetByID(ctx, productID)
	if err != nil {
		return Quote{}, errors.Wrapf(err, "get product %d", productID)
	}
	return QuoteFor(*p, quantity)
}

// Line is one requested (product, quantity) pair.
type Line struct {
	ProductID int64
	Quantity  int
}

// LineError reports the line that could not be priced. Err is
// ErrInvalidQuantity, product.ErrNotFound or product.ErrUnavailable.
type LineError struct {
	Index     int
	ProductID int64
	Err       error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: product %d: %v", e.Index, e.ProductID, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ResolveMany prices every line with a single catalog lookup. Quotes are
// returned in line order. The first line that cannot be priced fails the
// call with a *LineError; catalog failures are returned wrapped.
func (r *Resolver) ResolveMany(ctx context.Context, lines []Line) ([]Quote, error) {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for i, l := range lines {
		if l.Quantity <= 0 {
			return nil, &LineError{Index: i, ProductID: l.ProductID, Err: ErrInvalidQuantity}
		}
		if _, ok := seen[l.ProductID]; !ok {
			seen[l.ProductID] = struct{}{}
			ids = append(ids, l.ProductID)
		}
	}

	fetched, err := r.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	catalog := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		catalog[p.ID] = p
	}

	quotes := make([]Quote, len(lines))
	for i, l := range lines {
		p, ok := catalog[l.ProductID]
		if !ok {
			return nil, &LineError{Index: i, ProductID: l.ProductID, Err: product.ErrNotFound}
		}
		q, err := QuoteFor(p, l.Quantity)
		if err != nil {
			return nil, &LineError{Index: i, ProductID: l.ProductID, Err: err}
		}
		quotes[i] = q
	}
	return quotes, nil
}
