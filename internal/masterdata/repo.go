package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository exposes master data persistence.
type Repository interface {
	ListVendors(ctx context.Context, includeDisabled bool) ([]Vendor, error)
	GetVendor(ctx context.Context, id int64) (Vendor, error)
	CreateVendor(ctx context.Context, v Vendor) (Vendor, error)
	UpdateVendor(ctx context.Context, id int64, v Vendor) error
	SetVendorDisabled(ctx context.Context, id int64, disabled bool) error

	ListSites(ctx context.Context, includeDisabled bool) ([]Site, error)
	GetSite(ctx context.Context, id int64) (Site, error)
	CreateSite(ctx context.Context, s Site) (Site, error)
	UpdateSite(ctx context.Context, id int64, s Site) error
	SetSiteDisabled(ctx context.Context, id int64, disabled bool) error
}

// repo implements Repository on pgxpool.
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a master data repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

func (r *repo) ListVendors(ctx context.Context, includeDisabled bool) ([]Vendor, error) {
	query := `SELECT id, name, contact_name, contact_phone, gstin, address, disabled, created_at, updated_at FROM vendors`
	if !includeDisabled {
		query += ` WHERE NOT disabled`
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.ContactName, &v.ContactPhone, &v.GSTIN,
			&v.Address, &v.Disabled, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

func (r *repo) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	query := `SELECT id, name, contact_name, contact_phone, gstin, address, disabled, created_at, updated_at FROM vendors WHERE id = $1`
	var v Vendor
	err := r.db.QueryRow(ctx, query, id).Scan(&v.ID, &v.Name, &v.ContactName, &v.ContactPhone,
		&v.GSTIN, &v.Address, &v.Disabled, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, ErrNotFound
	}
	return v, err
}

func (r *repo) CreateVendor(ctx context.Context, v Vendor) (Vendor, error) {
	query := `INSERT INTO vendors (name, contact_name, contact_phone, gstin, address, disabled, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, false, NOW(), NOW()) RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, v.Name, v.ContactName, v.ContactPhone, v.GSTIN, v.Address).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return Vendor{}, err
	}
	return v, nil
}

func (r *repo) UpdateVendor(ctx context.Context, id int64, v Vendor) error {
	query := `UPDATE vendors SET name = $1, contact_name = $2, contact_phone = $3, gstin = $4, address = $5, updated_at = NOW() WHERE id = $6`
	tag, err := r.db.Exec(ctx, query, v.Name, v.ContactName, v.ContactPhone, v.GSTIN, v.Address, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) SetVendorDisabled(ctx context.Context, id int64, disabled bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE vendors SET disabled = $1, updated_at = NOW() WHERE id = $2`, disabled, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) ListSites(ctx context.Context, includeDisabled bool) ([]Site, error) {
	query := `SELECT id, name, address, disabled, created_at, updated_at FROM sites`
	if !includeDisabled {
		query += ` WHERE NOT disabled`
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		var s Site
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &s.Disabled, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

func (r *repo) GetSite(ctx context.Context, id int64) (Site, error) {
	query := `SELECT id, name, address, disabled, created_at, updated_at FROM sites WHERE id = $1`
	var s Site
	err := r.db.QueryRow(ctx, query, id).Scan(&s.ID, &s.Name, &s.Address, &s.Disabled, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Site{}, ErrNotFound
	}
	return s, err
}

func (r *repo) CreateSite(ctx context.Context, s Site) (Site, error) {
	query := `INSERT INTO sites (name, address, disabled, created_at, updated_at)
	          VALUES ($1, $2, false, NOW(), NOW()) RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, s.Name, s.Address).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Site{}, err
	}
	return s, nil
}

func (r *repo) UpdateSite(ctx context.Context, id int64, s Site) error {
	query := `UPDATE sites SET name = $1, address = $2, updated_at = NOW() WHERE id = $3`
	tag, err := r.db.Exec(ctx, query, s.Name, s.Address, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) SetSiteDisabled(ctx context.Context, id int64, disabled bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE sites SET disabled = $1, updated_at = NOW() WHERE id = $2`, disabled, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
