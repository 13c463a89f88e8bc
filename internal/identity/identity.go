// Package identity supplies the caller's tenant context: the owner and
// organisation applied to records that do not declare their own.
package identity

// Provider yields the default owner and organisation for the current
// caller. The ingestion pipeline consults it once per record.
type Provider interface {
	Owner() string
	Organisation() string
}

// Static is a fixed identity, typically sourced from configuration.
type Static struct {
	owner        string
	organisation string
}

// NewStatic builds a Static provider.
func NewStatic(owner, organisation string) Static {
	return Static{owner: owner, organisation: organisation}
}

func (s Static) Owner() string        { return s.owner }
func (s Static) Organisation() string { return s.organisation }
