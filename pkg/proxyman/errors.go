package proxyman

import "errors"

var (
	// ErrInvalidConfiguration reports an empty namespace, a malformed type
	// name or an unknown proxy kind. It is raised at configuration time.
	ErrInvalidConfiguration = errors.New("proxyman: invalid configuration")

	// ErrSignatureMismatch reports a synthesized method that disagrees with
	// the introspected original, or a call with the wrong argument count.
	ErrSignatureMismatch = errors.New("proxyman: method signature mismatch")

	// ErrPropertyUnset is returned when reading a declared property that was
	// explicitly unset through the proxy.
	ErrPropertyUnset = errors.New("proxyman: property has been unset")

	// ErrUnknownProperty is returned for reads of undeclared properties that
	// were never set dynamically.
	ErrUnknownProperty = errors.New("proxyman: unknown property")

	// ErrReentrantInitialization is returned when an initializer accesses the
	// holder it is initializing.
	ErrReentrantInitialization = errors.New("proxyman: re-entrant lazy initialization")

	// ErrNoInitializer is returned when a lazy holder has no initializer.
	ErrNoInitializer = errors.New("proxyman: lazy holder has no initializer")
)
