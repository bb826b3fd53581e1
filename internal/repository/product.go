package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/wholesale-orders/internal/domain/product"
)

const (
	productColumns = `id, code, name, retail_price, wholesale_price, wholesale_min_qty, stock, status`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`

	searchProductsWhere = `WHERE status = 'active' AND (name ILIKE $1 ESCAPE '\' OR code ILIKE $1 ESCAPE '\')`

	searchProductsSQL = `SELECT ` + productColumns + ` FROM products ` + searchProductsWhere + `
	ORDER BY created_at DESC, id DESC
	LIMIT $2 OFFSET $3`

	countProductsSQL = `SELECT count(*) FROM products ` + searchProductsWhere

	upsertProductSQL = `INSERT INTO products (code, name, retail_price, wholesale_price, wholesale_min_qty, stock, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (code) DO UPDATE SET
		name = EXCLUDED.name,
		retail_price = EXCLUDED.retail_price,
		wholesale_price = EXCLUDED.wholesale_price,
		wholesale_min_qty = EXCLUDED.wholesale_min_qty,
		stock = EXCLUDED.stock,
		status = EXCLUDED.status,
		updated_at = now()
	RETURNING id`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository reads the catalog from PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return &p, nil
}

// GetByIDs returns the products matching ids. Unknown ids are skipped.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Search returns one page of active products matching q, newest first.
func (r *ProductRepository) Search(ctx context.Context, q product.Query) (product.Page, error) {
	pattern := containsPattern(q.Search)

	var page product.Page
	if err := r.pool.QueryRow(ctx, countProductsSQL, pattern).Scan(&page.Total); err != nil {
		return product.Page{}, errors.Wrap(err, "count products")
	}
	rows, err := r.pool.Query(ctx, searchProductsSQL, pattern, limitArg(q.Limit), q.Offset)
	if err != nil {
		return product.Page{}, errors.Wrap(err, "search products")
	}
	page.Products, err = pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return product.Page{}, errors.Wrap(err, "search products")
	}
	return page, nil
}

// Upsert inserts p or updates the product with the same code, and sets p.ID.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	status := p.Status
	if status == "" {
		status = product.StatusActive
	}
	err := r.pool.QueryRow(ctx, upsertProductSQL,
		p.Code, p.Name, p.RetailPrice, p.WholesalePrice, p.WholesaleMinQty, p.Stock, string(status),
	).Scan(&p.ID)
	if err != nil {
		return errors.Wrapf(err, "upsert product %s", p.Code)
	}
	p.Status = status
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p      product.Product
		status string
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.RetailPrice, &p.WholesalePrice,
		&p.WholesaleMinQty, &p.Stock, &status,
	)
	p.Status = product.Status(status)
	return p, err
}
