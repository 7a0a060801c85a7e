package masterdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	vendors map[int64]*Vendor
	sites   map[int64]*Site
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{vendors: make(map[int64]*Vendor), sites: make(map[int64]*Site)}
}

func (m *memoryRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryRepo) ListVendors(_ context.Context, includeDisabled bool) ([]Vendor, error) {
	var out []Vendor
	for _, v := range m.vendors {
		if v.Disabled && !includeDisabled {
			continue
		}
		out = append(out, *v)
	}
	return out, nil
}

func (m *memoryRepo) GetVendor(_ context.Context, id int64) (Vendor, error) {
	v, ok := m.vendors[id]
	if !ok {
		return Vendor{}, ErrNotFound
	}
	return *v, nil
}

func (m *memoryRepo) CreateVendor(_ context.Context, v Vendor) (Vendor, error) {
	v.ID = m.id()
	m.vendors[v.ID] = &v
	return v, nil
}

func (m *memoryRepo) UpdateVendor(_ context.Context, id int64, v Vendor) error {
	stored, ok := m.vendors[id]
	if !ok {
		return ErrNotFound
	}
	v.ID = id
	v.Disabled = stored.Disabled
	*stored = v
	return nil
}

func (m *memoryRepo) SetVendorDisabled(_ context.Context, id int64, disabled bool) error {
	v, ok := m.vendors[id]
	if !ok {
		return ErrNotFound
	}
	v.Disabled = disabled
	return nil
}

func (m *memoryRepo) ListSites(_ context.Context, includeDisabled bool) ([]Site, error) {
	var out []Site
	for _, s := range m.sites {
		if s.Disabled && !includeDisabled {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *memoryRepo) GetSite(_ context.Context, id int64) (Site, error) {
	s, ok := m.sites[id]
	if !ok {
		return Site{}, ErrNotFound
	}
	return *s, nil
}

func (m *memoryRepo) CreateSite(_ context.Context, s Site) (Site, error) {
	s.ID = m.id()
	m.sites[s.ID] = &s
	return s, nil
}

func (m *memoryRepo) UpdateSite(_ context.Context, id int64, s Site) error {
	stored, ok := m.sites[id]
	if !ok {
		return ErrNotFound
	}
	s.ID = id
	s.Disabled = stored.Disabled
	*stored = s
	return nil
}

func (m *memoryRepo) SetSiteDisabled(_ context.Context, id int64, disabled bool) error {
	s, ok := m.sites[id]
	if !ok {
		return ErrNotFound
	}
	s.Disabled = disabled
	return nil
}

func TestVendorLifecycle(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateVendor(ctx, Vendor{})
	require.ErrorIs(t, err, ErrValidation)

	created, err := svc.CreateVendor(ctx, Vendor{Name: "Shree Cement Traders", GSTIN: "22AAAAA0000A1Z5"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	require.NoError(t, svc.DisableVendor(ctx, created.ID))
	active, err := svc.ListVendors(ctx, false)
	require.NoError(t, err)
	require.Empty(t, active)

	all, err := svc.ListVendors(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.True(t, all[0].Disabled)

	require.NoError(t, svc.EnableVendor(ctx, created.ID))
	require.ErrorIs(t, svc.DisableVendor(ctx, 999), ErrNotFound)
}

func TestSiteLifecycle(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	created, err := svc.CreateSite(ctx, Site{Name: "Riverside Towers", Address: "Pune"})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateSite(ctx, created.ID, Site{Name: "Riverside Towers Phase II", Address: "Pune"}))
	got, err := svc.GetSite(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Riverside Towers Phase II", got.Name)

	require.ErrorIs(t, svc.UpdateSite(ctx, created.ID, Site{}), ErrValidation)
	_, err = svc.GetSite(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}
