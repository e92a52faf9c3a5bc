package annotations

import (
	"fmt"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/internal/utils"
	"github.com/toyz/proxyman/pkg/proxyman"
)

// ParameterSpec defines a reserved annotation key
type ParameterSpec struct {
	Description string
	Kinds       []proxyman.Kind // kinds that accept the key, empty means all
	Validator   utils.Validator[string]
}

// accepts reports whether kind may carry the key
func (s ParameterSpec) accepts(kind proxyman.Kind) bool {
	if len(s.Kinds) == 0 {
		return true
	}
	for _, k := range s.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ReservedParameters lists the keys that configure the generated proxy
var ReservedParameters = map[string]ParameterSpec{
	KeyService: {
		Description: "Remote service name, defaults to the annotated type's TypeName",
		Kinds:       []proxyman.Kind{proxyman.KindRemote},
		Validator:   utils.Chain[string](utils.NotEmpty(KeyService), proxyman.ValidateTypeName),
	},
	KeyAdapter: {
		Description: "Remote call adapter: 'jsonrpc' (default) or 'direct'",
		Kinds:       []proxyman.Kind{proxyman.KindRemote},
		Validator:   utils.IsOneOf(KeyAdapter, "jsonrpc", "direct"),
	},
	KeyName: {
		Description: "Go identifier of the generated proxy type",
		Validator:   utils.IsValidGoIdentifier(KeyName),
	},
}

// Examples shows one annotation per kind, used in syntax error hints
var Examples = map[proxyman.Kind]string{
	proxyman.KindLazy:        "//proxy::lazy",
	proxyman.KindInterceptor: "//proxy::interceptor -Name=AuditedService",
	proxyman.KindRemote:      "//proxy::remote -Service=users -Adapter=jsonrpc",
}

// ValidateAnnotation checks reserved keys against the annotation kind
func ValidateAnnotation(annotation *ParsedAnnotation) error {
	for key, value := range annotation.Options {
		spec, ok := ReservedParameters[key]
		if !ok {
			continue
		}
		if !spec.accepts(annotation.Kind) {
			return errors.Wrapf(errors.ValidationErrorCode, proxyman.ErrInvalidConfiguration, "parameter '%s' is not supported by //%s%s", key, Prefix, annotation.Kind).
				WithLocation(annotation.Location).
				WithSuggestion(fmt.Sprintf("Example: %s", Examples[proxyman.KindRemote]))
		}
		if spec.Validator != nil {
			if err := spec.Validator(value); err != nil {
				return errors.Wrapf(errors.ValidationErrorCode, fmt.Errorf("%w: %w", proxyman.ErrInvalidConfiguration, err), "invalid value for '%s'", key).
					WithLocation(annotation.Location).
					WithSuggestion(spec.Description)
			}
		}
	}
	return nil
}
