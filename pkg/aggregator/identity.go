package aggregator

import "github.com/cockroachdb/errors"

// TargetIdentity names the physical destination an aggregator writes to.
// Callers must give two handles to the same resource the same identity;
// the registry keys aggregators on this value and never derives it.
type TargetIdentity struct {
	// Kind is the backend kind, e.g. "mongo", "redis", "sql".
	Kind string
	// Conn is a stable connection descriptor (host, DSN alias, pool name).
	Conn string
	// Resource is the collection, index, key space or statement template.
	Resource string
}

// String renders the identity as kind://conn/resource.
func (t TargetIdentity) String() string {
	return t.Kind + "://" + t.Conn + "/" + t.Resource
}

// Validate checks that Kind and Resource are set.
func (t TargetIdentity) Validate() error {
	if t.Kind == "" {
		return errors.Wrap(ErrInvalidTarget, "kind is required")
	}
	if t.Resource == "" {
		return errors.Wrapf(ErrInvalidTarget, "resource is required for %s target", t.Kind)
	}
	return nil
}
