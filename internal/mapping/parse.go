package mapping

import (
	"encoding/json"
	"fmt"

	"github.com/perpetuitylabs/underwritingflow/internal/jsonrepair"
)

const snippetLen = 200

// ParseModelText recovers a mapping result from raw model output. The repair
// chain never fails, so the only error here is the "nothing usable was
// parsed" case, which carries a truncated snippet of the offending text so
// the failure can be diagnosed without re-running the pipeline.
func ParseModelText(text string) (Result, error) {
	obj := jsonrepair.Lenient(text)
	if len(obj) == 0 {
		return Result{}, fmt.Errorf("no usable mapping payload in model output: %q", jsonrepair.Snippet(text, snippetLen))
	}

	// Round-trip through JSON to apply the struct field mapping. The object
	// came out of a JSON parser, so this cannot fail on encode.
	raw, err := json.Marshal(obj)
	if err != nil {
		return Result{}, fmt.Errorf("failed to re-encode mapping payload: %w", err)
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, fmt.Errorf("mapping payload does not fit the expected shape: %q: %w", jsonrepair.Snippet(text, snippetLen), err)
	}
	if result.Mapped == nil {
		result.Mapped = map[string]any{}
	}
	return result, nil
}
