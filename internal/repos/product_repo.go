package repos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"quotedesk/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) Get(ext sqlx.Ext, id string) (domain.Product, error) {
	var p domain.Product
	err := sqlx.Get(ext, &p, `
	  SELECT id, name, COALESCE(description,'') AS description, price, active,
	         created_at, COALESCE(updated_at,'') AS updated_at
	  FROM products
	  WHERE id = ?
	`, id)
	if err == sql.ErrNoRows {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, err
}

func (r *ProductRepo) List(ext sqlx.Ext, limit, offset int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.Product
	err := sqlx.Select(ext, &out, `
	  SELECT id, name, COALESCE(description,'') AS description, price, active,
	         created_at, COALESCE(updated_at,'') AS updated_at
	  FROM products
	  WHERE active = 1
	  ORDER BY created_at DESC
	  LIMIT ? OFFSET ?
	`, limit, offset)
	return out, err
}

func (r *ProductRepo) Insert(ext sqlx.Ext, p domain.Product) error {
	_, err := ext.Exec(`
	  INSERT INTO products(id, name, description, price, active)
	  VALUES (?,?,?,?,?)
	`, p.ID, p.Name, p.Description, p.Price, p.Active)
	return err
}
