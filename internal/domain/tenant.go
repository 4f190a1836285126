package domain

import "fmt"

// Tenant is the isolation boundary for the vector space. A notebook owned by
// a user is one tenant; the zero value is the shared global knowledge base.
type Tenant struct {
	NotebookID string
	UserID     string
}

// GlobalTenant returns the tenant for the shared knowledge base.
func GlobalTenant() Tenant {
	return Tenant{}
}

// IsGlobal reports whether the tenant is the shared knowledge base.
func (t Tenant) IsGlobal() bool {
	return t.NotebookID == "" && t.UserID == ""
}

// Key returns a stable string form usable as a map key or storage prefix.
func (t Tenant) Key() string {
	if t.IsGlobal() {
		return "global"
	}
	return fmt.Sprintf("%s:%s", t.NotebookID, t.UserID)
}

// ValidateTenant rejects half-specified tenants. A notebook tenant needs both
// the notebook and its owner; the global tenant has neither.
func ValidateTenant(t Tenant) error {
	if t.IsGlobal() {
		return nil
	}
	if t.NotebookID == "" || t.UserID == "" {
		return ErrPartialTenant
	}
	return nil
}
