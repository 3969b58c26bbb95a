package model

import (
	"errors"
	"fmt"
)

// ErrInvalidTenantID is returned when a tenant identifier does not satisfy
// the tenant id format (1-10 lowercase letters and digits).
var ErrInvalidTenantID = errors.New("invalid tenant id")

// TenantID identifies one logical graph inside shared storage. The zero
// value is the default tenant: labels, index names and node ids are left
// untouched for it. Any other tenant namespaces everything it writes.
type TenantID struct {
	value string
}

// DefaultTenant returns the unnamespaced tenant.
func DefaultTenant() TenantID {
	return TenantID{}
}

// NewTenantID validates and returns a tenant id. An empty string yields the
// default tenant. Validation failures are configuration errors and must not
// be retried.
func NewTenantID(value string) (TenantID, error) {
	if value == "" {
		return DefaultTenant(), nil
	}
	if len(value) > 10 {
		return TenantID{}, fmt.Errorf("%w: %q is longer than 10 characters", ErrInvalidTenantID, value)
	}
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return TenantID{}, fmt.Errorf("%w: %q must contain only lowercase letters and digits", ErrInvalidTenantID, value)
		}
	}
	return TenantID{value: value}, nil
}

// IsDefault reports whether this is the default tenant.
func (t TenantID) IsDefault() bool {
	return t.value == ""
}

func (t TenantID) String() string {
	if t.IsDefault() {
		return "default"
	}
	return t.value
}

// FormatLabel namespaces a graph node label for this tenant.
func (t TenantID) FormatLabel(label string) string {
	if t.IsDefault() {
		return label
	}
	return fmt.Sprintf("%s%s__", label, t.value)
}

// FormatIndexName namespaces a vector index name for this tenant.
func (t TenantID) FormatIndexName(name string) string {
	if t.IsDefault() {
		return name
	}
	return fmt.Sprintf("%s_%s", name, t.value)
}

// RewriteID prefixes a node id with the tenant namespace. Ids of the default
// tenant are passed through unchanged so that existing graphs stay valid.
func (t TenantID) RewriteID(id string) string {
	if t.IsDefault() {
		return id
	}
	return fmt.Sprintf("%s::%s", t.value, id)
}

// FormatHashable scopes a hash input string to this tenant so that identical
// content indexed under two tenants never collides on derived node ids.
func (t TenantID) FormatHashable(s string) string {
	if t.IsDefault() {
		return s
	}
	return fmt.Sprintf("%s::%s", t.value, s)
}
