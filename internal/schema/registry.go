package schema

import (
	_ "embed"
	"fmt"
	"sync"
)

//go:embed model_schema.yaml
var embeddedSchema []byte

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the process-wide registry built from the embedded schema
// source. The load happens once; a malformed embedded schema is a
// configuration error and panics at first use rather than being retried.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Load(embeddedSchema)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded model schema is unusable: %v", defaultErr))
	}
	return defaultRegistry
}
