package masterdata

import (
	"context"
	"fmt"
)

// Service wraps master data operations with validation.
type Service struct {
	repo Repository
}

// NewService constructs the master data service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListVendors(ctx context.Context, includeDisabled bool) ([]Vendor, error) {
	return s.repo.ListVendors(ctx, includeDisabled)
}

func (s *Service) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.GetVendor(ctx, id)
}

func (s *Service) CreateVendor(ctx context.Context, v Vendor) (Vendor, error) {
	if v.Name == "" {
		return Vendor{}, fmt.Errorf("%w: vendor name required", ErrValidation)
	}
	return s.repo.CreateVendor(ctx, v)
}

func (s *Service) UpdateVendor(ctx context.Context, id int64, v Vendor) error {
	if v.Name == "" {
		return fmt.Errorf("%w: vendor name required", ErrValidation)
	}
	return s.repo.UpdateVendor(ctx, id, v)
}

// DisableVendor hides a vendor from new comparisons without touching history.
func (s *Service) DisableVendor(ctx context.Context, id int64) error {
	return s.repo.SetVendorDisabled(ctx, id, true)
}

func (s *Service) EnableVendor(ctx context.Context, id int64) error {
	return s.repo.SetVendorDisabled(ctx, id, false)
}

func (s *Service) ListSites(ctx context.Context, includeDisabled bool) ([]Site, error) {
	return s.repo.ListSites(ctx, includeDisabled)
}

func (s *Service) GetSite(ctx context.Context, id int64) (Site, error) {
	return s.repo.GetSite(ctx, id)
}

func (s *Service) CreateSite(ctx context.Context, site Site) (Site, error) {
	if site.Name == "" {
		return Site{}, fmt.Errorf("%w: site name required", ErrValidation)
	}
	return s.repo.CreateSite(ctx, site)
}

func (s *Service) UpdateSite(ctx context.Context, id int64, site Site) error {
	if site.Name == "" {
		return fmt.Errorf("%w: site name required", ErrValidation)
	}
	return s.repo.UpdateSite(ctx, id, site)
}

func (s *Service) DisableSite(ctx context.Context, id int64) error {
	return s.repo.SetSiteDisabled(ctx, id, true)
}

func (s *Service) EnableSite(ctx context.Context, id int64) error {
	return s.repo.SetSiteDisabled(ctx, id, false)
}
