// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package accounttest

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tenantry/tenantry/internal/account"
)

// Tenants is the account.TenantRepository view of a Store.
type Tenants struct{ s *Store }

// Tenants returns the tenant repository backed by s.
func (s *Store) Tenants() *Tenants { return &Tenants{s: s} }

// Create implements account.TenantRepository.
func (r *Tenants) Create(ctx context.Context, t *account.Tenant) error {
	s := r.s
	if err := s.fault("Tenants.Create"); err != nil {
		return err
	}
	return s.write(ctx, func() error {
		for _, other := range s.tenants {
			if strings.EqualFold(other.Subdomain, t.Subdomain) {
				return oops.With("constraint", "tenants_subdomain_key").Wrap(account.ErrDuplicate)
			}
		}
		s.nextTenant++
		t.ID = s.nextTenant
		c := *t
		s.tenants[t.ID] = &c
		return nil
	})
}

// GetByID implements account.TenantRepository.
func (r *Tenants) GetByID(_ context.Context, id account.TenantID) (*account.Tenant, error) {
	s := r.s
	if err := s.fault("Tenants.GetByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok || t.DeletedAt != nil {
		return nil, account.ErrNotFound
	}
	c := *t
	return &c, nil
}

// ListIDsByOwner implements account.TenantRepository.
func (r *Tenants) ListIDsByOwner(_ context.Context, ownerID ulid.ULID) ([]account.TenantID, error) {
	s := r.s
	if err := s.fault("Tenants.ListIDsByOwner"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []account.TenantID
	for id, t := range s.tenants {
		if t.OwnerID == ownerID && t.DeletedAt == nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// SetActive implements account.TenantRepository.
func (r *Tenants) SetActive(ctx context.Context, id account.TenantID, active bool, at time.Time) (*account.Tenant, error) {
	s := r.s
	if err := s.fault("Tenants.SetActive"); err != nil {
		return nil, err
	}
	var out *account.Tenant
	err := s.write(ctx, func() error {
		t, ok := s.tenants[id]
		if !ok || t.DeletedAt != nil {
			return account.ErrNotFound
		}
		t.Active = active
		if active {
			t.LastActivatedAt = &at
		} else {
			t.LastDeactivatedAt = &at
		}
		c := *t
		out = &c
		return nil
	})
	return out, err
}

// Characters is the account.CharacterRepository view of a Store.
type Characters struct{ s *Store }

// Characters returns the character repository backed by s.
func (s *Store) Characters() *Characters { return &Characters{s: s} }

// GetByID implements account.CharacterRepository.
func (r *Characters) GetByID(_ context.Context, id ulid.ULID) (*account.Character, error) {
	s := r.s
	if err := s.fault("Characters.GetByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.characters[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	cc := *c
	return &cc, nil
}
