// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/oops"
)

// Repository sentinels. Storage implementations wrap these; services translate
// them into an ErrorKind.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate")
)

// ErrorKind classifies failures returned by the registry and resolver.
// It is carried as the oops error code.
type ErrorKind string

// Error kinds.
const (
	KindInvalidUsername         ErrorKind = "INVALID_USERNAME"
	KindInvalidPassword         ErrorKind = "INVALID_PASSWORD"
	KindAccountExists           ErrorKind = "ACCOUNT_EXISTS"
	KindAccountNotFound         ErrorKind = "ACCOUNT_NOT_FOUND"
	KindInvalidRoleTransition   ErrorKind = "INVALID_ROLE_TRANSITION"
	KindInvalidTenantObject     ErrorKind = "INVALID_TENANT_OBJECT"
	KindInvalidContentObject    ErrorKind = "INVALID_CONTENT_OBJECT"
	KindInvalidTenantIdentifier ErrorKind = "INVALID_TENANT_IDENTIFIER"
	KindDatabase                ErrorKind = "DATABASE_ERROR"
	KindInvalidSubdomain        ErrorKind = "INVALID_SUBDOMAIN"
	KindSubdomainTaken          ErrorKind = "SUBDOMAIN_TAKEN"
	KindInvalidOwner            ErrorKind = "INVALID_OWNER"
)

var knownKinds = map[ErrorKind]struct{}{
	KindInvalidUsername:         {},
	KindInvalidPassword:         {},
	KindAccountExists:           {},
	KindAccountNotFound:         {},
	KindInvalidRoleTransition:   {},
	KindInvalidTenantObject:     {},
	KindInvalidContentObject:    {},
	KindInvalidTenantIdentifier: {},
	KindDatabase:                {},
	KindInvalidSubdomain:        {},
	KindSubdomainTaken:          {},
	KindInvalidOwner:            {},
}

// KindOf extracts the ErrorKind from err. It returns "" for nil errors and
// for errors that carry no known kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	kind := ErrorKind(fmt.Sprint(oopsErr.Code()))
	if _, known := knownKinds[kind]; known {
		return kind
	}
	return ""
}

// HTTPStatus maps the kind onto a transport status code.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalidUsername, KindInvalidPassword, KindInvalidTenantIdentifier,
		KindInvalidRoleTransition, KindInvalidSubdomain, KindInvalidOwner:
		return http.StatusBadRequest
	case KindAccountExists, KindSubdomainTaken:
		return http.StatusConflict
	case KindAccountNotFound, KindInvalidTenantObject, KindInvalidContentObject:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (k ErrorKind) String() string {
	return string(k)
}

// failure starts an oops builder tagged with the given kind.
func failure(kind ErrorKind) oops.OopsErrorBuilder {
	return oops.Code(string(kind))
}

// wrapFailure wraps err with the kind carried by b. oops reports the
// innermost code, so a cause tagged with a code outside the known kinds is
// flattened into a new error with that code kept as cause_code.
func wrapFailure(b oops.OopsErrorBuilder, err error) error {
	if code := foreignCode(err); code != "" {
		return b.With("cause_code", code).Errorf("%v", err)
	}
	return b.Wrap(err)
}

func foreignCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := fmt.Sprint(oopsErr.Code())
	if code == "" || code == "<nil>" {
		return ""
	}
	if _, known := knownKinds[ErrorKind(code)]; known {
		return ""
	}
	return code
}
