package generator

import (
	"context"

	"github.com/toyz/proxyman/internal/factory"
	"github.com/toyz/proxyman/pkg/proxyman"
)

// DefinitionSource produces proxy definitions for the generator
type DefinitionSource interface {
	Definition(ctx context.Context, desc proxyman.TypeDescriptor, kind proxyman.Kind, params proxyman.Parameters, opts ...factory.RequestOption) (*factory.Definition, error)
}

var _ DefinitionSource = (*factory.Factory)(nil)
