package proxyman

import "fmt"

// Kind selects the behavior of a generated proxy
type Kind int

const (
	// KindLazy defers creation of the wrapped instance until first access
	KindLazy Kind = iota + 1

	// KindInterceptor runs prefix and suffix hooks around every method
	KindInterceptor

	// KindRemote forwards every call to a remote service
	KindRemote
)

// String returns the annotation name of the kind
func (k Kind) String() string {
	switch k {
	case KindLazy:
		return "lazy"
	case KindInterceptor:
		return "interceptor"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Suffix returns the Go type name suffix used for generated proxies
func (k Kind) Suffix() string {
	switch k {
	case KindLazy:
		return "LazyProxy"
	case KindInterceptor:
		return "InterceptorProxy"
	case KindRemote:
		return "RemoteProxy"
	default:
		return "Proxy"
	}
}

// Valid reports whether k is one of the supported kinds
func (k Kind) Valid() bool {
	return k >= KindLazy && k <= KindRemote
}

// ParseKind converts an annotation name into a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "lazy":
		return KindLazy, nil
	case "interceptor":
		return KindInterceptor, nil
	case "remote":
		return KindRemote, nil
	default:
		return 0, fmt.Errorf("%w: unknown proxy kind %q", ErrInvalidConfiguration, s)
	}
}

// Kinds lists every supported proxy kind
func Kinds() []Kind {
	return []Kind{KindLazy, KindInterceptor, KindRemote}
}
