// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RegistryDeps are the collaborators a Registry needs. All are required.
type RegistryDeps struct {
	Accounts   AccountRepository
	Tenants    TenantRepository
	Characters CharacterRepository
	Transactor Transactor
	Hasher     PasswordHasher
	Tokens     TokenIssuer
}

func (d RegistryDeps) validate() error {
	switch {
	case d.Accounts == nil:
		return oops.Code("REGISTRY_INVALID_DEPS").Errorf("accounts repository is required")
	case d.Tenants == nil:
		return oops.Code("REGISTRY_INVALID_DEPS").Errorf("tenants repository is required")
	case d.Characters == nil:
		return oops.Code("REGISTRY_INVALID_DEPS").Errorf("characters repository is required")
	case d.Transactor == nil:
		return oops.Code("REGISTRY_INVALID_DEPS").Errorf("transactor is required")
	case d.Hasher == nil:
		return oops.Code("REGISTRY_INVALID_DEPS").Errorf("password hasher is required")
	case d.Tokens == nil:
		return oops.Code("REGISTRY_INVALID_DEPS").Errorf("token issuer is required")
	}
	return nil
}

// Registry creates accounts for every role, enforces scoped username
// uniqueness, and provisions invited maintainers.
type Registry struct {
	accounts   AccountRepository
	tenants    TenantRepository
	characters CharacterRepository
	tx         Transactor
	hasher     PasswordHasher
	tokens     TokenIssuer

	usernames *UsernamePolicy
	logger    *slog.Logger
	recorder  Recorder
	now       func() time.Time
	in        instrument
}

// NewRegistry creates a Registry.
func NewRegistry(deps RegistryDeps, opts ...Option) (*Registry, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Registry{
		accounts:   deps.Accounts,
		tenants:    deps.Tenants,
		characters: deps.Characters,
		tx:         deps.Transactor,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		usernames:  o.usernames,
		logger:     o.logger,
		recorder:   o.recorder,
		now:        o.now,
		in:         instrument{logger: o.logger, recorder: o.recorder},
	}, nil
}

// CreateAdmin creates a platform administrator in the global scope.
func (r *Registry) CreateAdmin(ctx context.Context, c Credentials) (*View, error) {
	return r.createGlobal(ctx, RoleAdmin, c)
}

// CreateOwner creates a tenant owner in the global scope.
func (r *Registry) CreateOwner(ctx context.Context, c Credentials) (*View, error) {
	return r.createGlobal(ctx, RoleOwner, c)
}

func (r *Registry) createGlobal(ctx context.Context, role Role, c Credentials) (_ *View, err error) {
	op := "create_" + string(role)
	ctx, span := r.in.start(ctx, op)
	defer func() { r.in.finish(ctx, span, op, err) }()

	c, err = r.validateCredentials(c)
	if err != nil {
		return nil, err
	}

	taken, err := r.globalCollision(ctx, c.Username, c.email())
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, failure(KindAccountExists).
			With("username", c.Username).
			With("scope", ScopeGlobal.String()).
			Errorf("an account named %q already exists", c.Username)
	}

	hash, err := r.hash(c.Password)
	if err != nil {
		return nil, err
	}

	now := r.now()
	key := CompositeIdentifier(nil, c.Username)
	a := &Account{
		ID:           ulid.Make(),
		Role:         role,
		Username:     c.Username,
		PasswordHash: hash,
		Email:        c.email(),
		DisplayName:  c.displayName(),
		LoginKey:     &key,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.accounts.Create(ctx, a); err != nil {
		return nil, storageFailure(err, "insert account").With("username", c.Username).Wrap(err)
	}

	r.recorder.AccountCreated(string(role))
	r.logger.InfoContext(ctx, "account created",
		"account_id", a.ID.String(),
		"role", string(role),
	)
	return a.View(), nil
}

// globalCollision runs one existence check per global-scope role and ORs them.
func (r *Registry) globalCollision(ctx context.Context, username string, email *string) (bool, error) {
	for _, role := range []Role{RoleAdmin, RoleOwner} {
		hit, err := r.accounts.Exists(ctx, Probe{Role: role, Username: username, Email: email}, UniquenessPolicy())
		if err != nil {
			return false, failure(KindDatabase).
				With("operation", "check global uniqueness").
				With("role", string(role)).
				Wrap(err)
		}
		if hit {
			return true, nil
		}
	}
	return false, nil
}

// CreateTransientMaintainer creates an invited, not yet registered maintainer
// under the given tenant.
func (r *Registry) CreateTransientMaintainer(ctx context.Context, tenantID TenantID) (_ *View, err error) {
	const op = "create_transient"
	ctx, span := r.in.start(ctx, op)
	defer func() { r.in.finish(ctx, span, op, err) }()

	tenant, err := r.resolveTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	a, err := r.newTransient(tenant.ID, nil)
	if err != nil {
		return nil, err
	}
	if err := r.accounts.Create(ctx, a); err != nil {
		return nil, storageFailure(err, "insert transient account").With("tenant_id", tenantID).Wrap(err)
	}

	r.recorder.AccountCreated(string(RoleTransient))
	r.logger.InfoContext(ctx, "transient maintainer created",
		"account_id", a.ID.String(),
		"tenant_id", int64(tenant.ID),
	)
	return a.View(), nil
}

// CreateTransientMaintainerForCharacter creates an invited maintainer in the
// character's tenant and pre-links the character to it.
func (r *Registry) CreateTransientMaintainerForCharacter(ctx context.Context, characterID ulid.ULID) (_ *View, err error) {
	const op = "create_transient_for_character"
	ctx, span := r.in.start(ctx, op)
	defer func() { r.in.finish(ctx, span, op, err) }()

	var created *Account
	err = r.tx.InTransaction(ctx, func(ctx context.Context) error {
		char, err := r.characters.GetByID(ctx, characterID)
		if errors.Is(err, ErrNotFound) {
			return failure(KindInvalidContentObject).
				With("character_id", characterID.String()).
				Wrapf(err, "character %s does not exist", characterID)
		}
		if err != nil {
			return failure(KindDatabase).
				With("operation", "get character").
				With("character_id", characterID.String()).
				Wrap(err)
		}

		tenant, err := r.resolveTenant(ctx, char.TenantID)
		if err != nil {
			return err
		}

		a, err := r.newTransient(tenant.ID, []ulid.ULID{char.ID})
		if err != nil {
			return err
		}
		if err := r.accounts.Create(ctx, a); err != nil {
			return storageFailure(err, "insert transient account").
				With("character_id", characterID.String()).
				Wrap(err)
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, asDatabaseFailure(err)
	}

	r.recorder.AccountCreated(string(RoleTransient))
	r.logger.InfoContext(ctx, "transient maintainer created",
		"account_id", created.ID.String(),
		"tenant_id", int64(*created.TenantID),
		"character_id", characterID.String(),
	)
	return created.View(), nil
}

func (r *Registry) newTransient(tenantID TenantID, linked []ulid.ULID) (*Account, error) {
	token, err := r.tokens.Issue()
	if err != nil {
		return nil, wrapFailure(failure(KindDatabase).With("operation", "issue invite token"), err)
	}
	now := r.now()
	return &Account{
		ID:               ulid.Make(),
		Role:             RoleTransient,
		InviteToken:      &token,
		TenantID:         &tenantID,
		LinkedCharacters: linked,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// RegisterMaintainer converts a transient account into a registered
// maintainer. The read, role check, uniqueness check and write happen in one
// transaction so a token cannot be redeemed twice.
func (r *Registry) RegisterMaintainer(ctx context.Context, accountID ulid.ULID, c Credentials) (_ *View, err error) {
	const op = "register_maintainer"
	ctx, span := r.in.start(ctx, op)
	defer func() { r.in.finish(ctx, span, op, err) }()

	c, err = r.validateCredentials(c)
	if err != nil {
		return nil, err
	}
	return r.register(ctx, accountID, c)
}

// RegisterWithInvite redeems an invite token and registers the transient
// account it belongs to.
func (r *Registry) RegisterWithInvite(ctx context.Context, token string, c Credentials) (_ *View, err error) {
	const op = "register_with_invite"
	ctx, span := r.in.start(ctx, op)
	defer func() { r.in.finish(ctx, span, op, err) }()

	c, err = r.validateCredentials(c)
	if err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, failure(KindAccountNotFound).Errorf("invite token cannot be empty")
	}

	a, err := r.accounts.GetByInviteToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, failure(KindAccountNotFound).Wrapf(err, "invite token is invalid or already used")
	}
	if err != nil {
		return nil, failure(KindDatabase).With("operation", "get account by invite token").Wrap(err)
	}
	return r.register(ctx, a.ID, c)
}

func (r *Registry) register(ctx context.Context, accountID ulid.ULID, c Credentials) (*View, error) {
	hash, err := r.hash(c.Password)
	if err != nil {
		return nil, err
	}

	var view *View
	err = r.tx.InTransaction(ctx, func(ctx context.Context) error {
		a, err := r.accounts.GetForUpdate(ctx, accountID)
		if errors.Is(err, ErrNotFound) {
			return failure(KindAccountNotFound).
				With("account_id", accountID.String()).
				Wrapf(err, "account %s does not exist", accountID)
		}
		if err != nil {
			return failure(KindDatabase).
				With("operation", "lock account").
				With("account_id", accountID.String()).
				Wrap(err)
		}

		if !CanTransition(a.Role, RoleMaintainer) {
			return failure(KindInvalidRoleTransition).
				With("account_id", accountID.String()).
				With("role", string(a.Role)).
				Errorf("account with role %s cannot be registered as a maintainer", a.Role)
		}
		if a.TenantID == nil {
			return failure(KindInvalidTenantObject).
				With("account_id", accountID.String()).
				Errorf("transient account has no parent tenant")
		}

		tenant, err := r.resolveTenant(ctx, *a.TenantID)
		if err != nil {
			return err
		}

		hit, err := r.accounts.Exists(ctx, Probe{
			Role:     RoleMaintainer,
			TenantID: &tenant.ID,
			Username: c.Username,
			Email:    c.email(),
		}, UniquenessPolicy())
		if err != nil {
			return failure(KindDatabase).
				With("operation", "check tenant uniqueness").
				With("tenant_id", int64(tenant.ID)).
				Wrap(err)
		}
		if hit {
			return failure(KindAccountExists).
				With("username", c.Username).
				With("tenant_id", int64(tenant.ID)).
				With("scope", ScopePerTenant.String()).
				Errorf("an account named %q already exists in tenant %s", c.Username, tenant.ID)
		}

		a.register(c, hash, r.now())
		if err := r.accounts.Update(ctx, a); err != nil {
			return storageFailure(err, "update account").
				With("account_id", accountID.String()).
				Wrap(err)
		}
		view = a.View()
		return nil
	})
	if err != nil {
		return nil, asDatabaseFailure(err)
	}

	r.recorder.MaintainerRegistered()
	r.logger.InfoContext(ctx, "maintainer registered",
		"account_id", accountID.String(),
		"tenant_id", int64(*view.TenantID),
	)
	return view, nil
}

// GetAccount returns an active account.
func (r *Registry) GetAccount(ctx context.Context, id ulid.ULID) (_ *View, err error) {
	const op = "get_account"
	ctx, span := r.in.start(ctx, op)
	defer func() { r.in.finish(ctx, span, op, err) }()

	a, err := r.accounts.GetByID(ctx, id, ActiveOnly)
	if errors.Is(err, ErrNotFound) {
		return nil, failure(KindAccountNotFound).
			With("account_id", id.String()).
			Wrapf(err, "account %s does not exist", id)
	}
	if err != nil {
		return nil, failure(KindDatabase).With("operation", "get account").Wrap(err)
	}

	if a.Role == RoleOwner {
		owned, err := r.tenants.ListIDsByOwner(ctx, a.ID)
		if err != nil {
			return nil, failure(KindDatabase).With("operation", "list owned tenants").Wrap(err)
		}
		a.OwnedTenants = owned
	}
	return a.View(), nil
}

// DeleteAccount soft deletes an account. The username becomes available
// again in the account's scope.
func (r *Registry) DeleteAccount(ctx context.Context, id ulid.ULID) (err error) {
	const op = "delete_account"
	ctx, span := r.in.start(ctx, op)
	defer func() { r.in.finish(ctx, span, op, err) }()

	err = r.accounts.SoftDelete(ctx, id, r.now())
	if errors.Is(err, ErrNotFound) {
		return failure(KindAccountNotFound).
			With("account_id", id.String()).
			Wrapf(err, "account %s does not exist", id)
	}
	if err != nil {
		return failure(KindDatabase).With("operation", "soft delete account").Wrap(err)
	}
	r.logger.InfoContext(ctx, "account deleted", "account_id", id.String())
	return nil
}

// CreateTenant creates an active tenant owned by an owner account.
func (r *Registry) CreateTenant(ctx context.Context, ownerID ulid.ULID, subdomain string) (_ *Tenant, err error) {
	const op = "create_tenant"
	ctx, span := r.in.start(ctx, op)
	defer func() { r.in.finish(ctx, span, op, err) }()

	subdomain = NormalizeSubdomain(subdomain)
	if err := ValidateSubdomain(subdomain); err != nil {
		return nil, err
	}

	owner, err := r.accounts.GetByID(ctx, ownerID, ActiveOnly)
	if errors.Is(err, ErrNotFound) {
		return nil, failure(KindAccountNotFound).
			With("account_id", ownerID.String()).
			Wrapf(err, "owner %s does not exist", ownerID)
	}
	if err != nil {
		return nil, failure(KindDatabase).With("operation", "get owner").Wrap(err)
	}
	if owner.Role != RoleOwner {
		return nil, failure(KindInvalidOwner).
			With("account_id", ownerID.String()).
			With("role", string(owner.Role)).
			Errorf("account with role %s cannot own a tenant", owner.Role)
	}

	now := r.now()
	t := &Tenant{
		Subdomain:       subdomain,
		OwnerID:         ownerID,
		Active:          true,
		LastActivatedAt: &now,
		CreatedAt:       now,
	}
	if err := r.tenants.Create(ctx, t); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, failure(KindSubdomainTaken).
				With("subdomain", subdomain).
				Wrapf(err, "subdomain %q is already taken", subdomain)
		}
		return nil, failure(KindDatabase).With("operation", "insert tenant").Wrap(err)
	}

	r.logger.InfoContext(ctx, "tenant created",
		"tenant_id", int64(t.ID),
		"subdomain", subdomain,
		"owner_id", ownerID.String(),
	)
	return t, nil
}

// SetTenantActive activates or deactivates a tenant.
func (r *Registry) SetTenantActive(ctx context.Context, id TenantID, active bool) (_ *Tenant, err error) {
	const op = "set_tenant_active"
	ctx, span := r.in.start(ctx, op)
	defer func() { r.in.finish(ctx, span, op, err) }()

	t, err := r.tenants.SetActive(ctx, id, active, r.now())
	if errors.Is(err, ErrNotFound) {
		return nil, failure(KindInvalidTenantObject).
			With("tenant_id", int64(id)).
			Wrapf(err, "tenant %s does not exist", id)
	}
	if err != nil {
		return nil, failure(KindDatabase).With("operation", "set tenant active").Wrap(err)
	}
	return t, nil
}

func (r *Registry) resolveTenant(ctx context.Context, id TenantID) (*Tenant, error) {
	t, err := r.tenants.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, failure(KindInvalidTenantObject).
			With("tenant_id", int64(id)).
			Wrapf(err, "tenant %s does not exist", id)
	}
	if err != nil {
		return nil, failure(KindDatabase).
			With("operation", "get tenant").
			With("tenant_id", int64(id)).
			Wrap(err)
	}
	if t.IsDeleted() {
		return nil, failure(KindInvalidTenantObject).
			With("tenant_id", int64(id)).
			Errorf("tenant %s has been deleted", id)
	}
	return t, nil
}

// validateCredentials trims the username and rejects blank or reserved
// usernames and blank passwords. It never touches storage.
func (r *Registry) validateCredentials(c Credentials) (Credentials, error) {
	c.Username = strings.TrimSpace(c.Username)
	if err := r.usernames.ValidateUsername(c.Username); err != nil {
		return c, err
	}
	if err := ValidatePassword(c.Password); err != nil {
		return c, err
	}
	return c, nil
}

func (r *Registry) hash(password string) (string, error) {
	hash, err := r.hasher.Hash(password)
	if err != nil {
		return "", wrapFailure(failure(KindDatabase).With("operation", "hash password"), err)
	}
	return hash, nil
}

// storageFailure picks the kind for a failed write: a uniqueness violation
// means the account exists, anything else is a database error.
func storageFailure(err error, operation string) oops.OopsErrorBuilder {
	if errors.Is(err, ErrDuplicate) {
		return failure(KindAccountExists).With("operation", operation)
	}
	return failure(KindDatabase).With("operation", operation)
}

// asDatabaseFailure tags errors escaping a transaction without a kind (begin,
// commit) as database errors.
func asDatabaseFailure(err error) error {
	if KindOf(err) != "" {
		return err
	}
	return wrapFailure(failure(KindDatabase).With("operation", "transaction"), err)
}
