//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package store_test

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tenantry/tenantry/internal/account"
	"github.com/tenantry/tenantry/internal/account/accounttest"
	"github.com/tenantry/tenantry/internal/account/postgres"
)

var _ = Describe("Account storage on PostgreSQL", func() {
	var (
		ctx      context.Context
		registry *account.Registry
		resolver *account.Resolver
		accounts *postgres.AccountRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx)

		deps := postgres.Deps(pool, accounttest.FastHasher(), account.NewRandomTokenIssuer(32))
		var err error
		registry, err = account.NewRegistry(deps)
		Expect(err).NotTo(HaveOccurred())
		resolver, err = account.NewResolver(deps.Accounts, deps.Tenants, deps.Hasher)
		Expect(err).NotTo(HaveOccurred())
		accounts = postgres.NewAccountRepository(pool)
	})

	kindOf := func(err error) account.ErrorKind {
		return account.KindOf(err)
	}

	newTenant := func(subdomain string) *account.Tenant {
		owner, err := registry.CreateOwner(ctx, account.Credentials{Username: subdomain + "-owner", Password: "hunter22"})
		Expect(err).NotTo(HaveOccurred())
		ownerID, err := ulid.Parse(owner.ID)
		Expect(err).NotTo(HaveOccurred())
		tenant, err := registry.CreateTenant(ctx, ownerID, subdomain)
		Expect(err).NotTo(HaveOccurred())
		return tenant
	}

	Describe("global accounts", func() {
		It("round-trips an admin", func() {
			view, err := registry.CreateAdmin(ctx, account.Credentials{
				Username: "root", Password: "hunter22", Email: "root@example.com",
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := registry.GetAccount(ctx, ulid.MustParse(view.ID))
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Role).To(Equal(account.RoleAdmin))
			Expect(got.Username).To(Equal("root"))
			Expect(got.Email).To(HaveValue(Equal("root@example.com")))
			Expect(got.TenantID).To(BeNil())
		})

		It("rejects an owner whose username differs only by case from an admin", func() {
			_, err := registry.CreateAdmin(ctx, account.Credentials{Username: "Alice", Password: "hunter22"})
			Expect(err).NotTo(HaveOccurred())

			_, err = registry.CreateOwner(ctx, account.Credentials{Username: "alice", Password: "hunter22"})
			Expect(kindOf(err)).To(Equal(account.KindAccountExists))
		})

		It("maps the login key index to ErrDuplicate", func() {
			a := &account.Account{
				ID: ulid.Make(), Role: account.RoleAdmin, Username: "dup",
				PasswordHash: "x", LoginKey: "O-dup",
			}
			Expect(accounts.Create(ctx, a)).To(Succeed())

			b := *a
			b.ID = ulid.Make()
			b.LoginKey = "O-DUP"
			Expect(accounts.Create(ctx, &b)).To(MatchError(account.ErrDuplicate))
		})

		It("frees the slot after a soft delete", func() {
			view, err := registry.CreateOwner(ctx, account.Credentials{Username: "bob", Password: "hunter22"})
			Expect(err).NotTo(HaveOccurred())
			Expect(registry.DeleteAccount(ctx, ulid.MustParse(view.ID))).To(Succeed())

			_, err = registry.GetAccount(ctx, ulid.MustParse(view.ID))
			Expect(kindOf(err)).To(Equal(account.KindAccountNotFound))

			_, err = registry.CreateOwner(ctx, account.Credentials{Username: "bob", Password: "hunter22"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("lets exactly one concurrent create win", func() {
			const n = 8
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				wins     int
				conflict int
			)
			for range n {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := registry.CreateOwner(ctx, account.Credentials{Username: "racer", Password: "hunter22"})
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						wins++
						return
					}
					Expect(kindOf(err)).To(Equal(account.KindAccountExists))
					conflict++
				}()
			}
			wg.Wait()
			Expect(wins).To(Equal(1))
			Expect(conflict).To(Equal(n - 1))
		})
	})

	Describe("tenants", func() {
		It("lists owned tenants on the owner view", func() {
			tenant := newTenant("acme")
			got, err := registry.GetAccount(ctx, tenant.OwnerID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.OwnedTenants).To(ConsistOf(tenant.ID))
		})

		It("rejects a subdomain taken in another case", func() {
			tenant := newTenant("acme")
			_, err := registry.CreateTenant(ctx, tenant.OwnerID, "ACME")
			Expect(kindOf(err)).To(Equal(account.KindSubdomainTaken))
		})

		It("stamps activation transitions", func() {
			tenant := newTenant("acme")
			off, err := registry.SetTenantActive(ctx, tenant.ID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(off.Active).To(BeFalse())
			Expect(off.LastDeactivatedAt).NotTo(BeNil())
			Expect(off.LastActivatedAt).NotTo(BeNil())
		})
	})

	Describe("maintainer lifecycle", func() {
		It("invites, registers and logs in within the tenant scope", func() {
			tenant := newTenant("acme")

			transient, err := registry.CreateTransientMaintainer(ctx, tenant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(transient.InviteToken).NotTo(BeNil())

			view, err := registry.RegisterWithInvite(ctx, *transient.InviteToken, account.Credentials{
				Username: "carol", Password: "hunter22", Email: "carol@example.com",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Role).To(Equal(account.RoleMaintainer))
			Expect(view.ID).To(Equal(transient.ID))

			res, err := resolver.Authenticate(ctx, account.LoginRequest{
				TenantID: tenant.ID.String(), Username: "CAROL", Password: "hunter22",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Authenticated).To(BeTrue())
			Expect(res.Principal.TenantID).To(HaveValue(Equal(tenant.ID)))

			res, err = resolver.Authenticate(ctx, account.LoginRequest{Username: "carol", Password: "hunter22"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Authenticated).To(BeFalse())
		})

		It("allows the same maintainer username in different tenants", func() {
			for _, sub := range []string{"acme", "globex"} {
				tenant := newTenant(sub)
				transient, err := registry.CreateTransientMaintainer(ctx, tenant.ID)
				Expect(err).NotTo(HaveOccurred())
				_, err = registry.RegisterMaintainer(ctx, ulid.MustParse(transient.ID), account.Credentials{
					Username: "dave", Password: "hunter22", Email: "dave@example.com",
				})
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("links a character to the transient account", func() {
			tenant := newTenant("acme")
			charID := ulid.Make()
			_, err := pool.Exec(ctx, `INSERT INTO characters (id, tenant_id, name) VALUES ($1, $2, $3)`,
				charID.String(), int64(tenant.ID), "Gandalf")
			Expect(err).NotTo(HaveOccurred())

			transient, err := registry.CreateTransientMaintainerForCharacter(ctx, charID)
			Expect(err).NotTo(HaveOccurred())
			Expect(transient.TenantID).To(HaveValue(Equal(tenant.ID)))
			Expect(transient.LinkedCharacters).To(ConsistOf(charID.String()))
		})

		It("refuses to register the same invite twice", func() {
			tenant := newTenant("acme")
			transient, err := registry.CreateTransientMaintainer(ctx, tenant.ID)
			Expect(err).NotTo(HaveOccurred())
			id := ulid.MustParse(transient.ID)

			_, err = registry.RegisterMaintainer(ctx, id, account.Credentials{Username: "erin", Password: "hunter22"})
			Expect(err).NotTo(HaveOccurred())
			_, err = registry.RegisterMaintainer(ctx, id, account.Credentials{Username: "erin2", Password: "hunter22"})
			Expect(kindOf(err)).To(Equal(account.KindInvalidRoleTransition))
		})
	})

	Describe("Exists", func() {
		It("honours the match policy", func() {
			_, err := registry.CreateAdmin(ctx, account.Credentials{
				Username: "frank", Password: "hunter22", Email: "frank@example.com",
			})
			Expect(err).NotTo(HaveOccurred())

			email := "other@example.com"
			probe := account.Probe{Role: account.RoleAdmin, Username: "FRANK", Email: &email}

			anyMatch, err := accounts.Exists(ctx, probe, account.UniquenessPolicy())
			Expect(err).NotTo(HaveOccurred())
			Expect(anyMatch).To(BeTrue())

			allMatch, err := accounts.Exists(ctx, probe, account.MatchPolicy{Combine: account.MatchAll, CaseInsensitive: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(allMatch).To(BeFalse())

			exact, err := accounts.Exists(ctx, account.Probe{Username: "FRANK"}, account.MatchPolicy{})
			Expect(err).NotTo(HaveOccurred())
			Expect(exact).To(BeFalse())
		})
	})
})
