package artifact

import (
	"encoding/json"

	"github.com/cowork-forge/forge/internal/forgeerr"
	"github.com/cowork-forge/forge/internal/model"
)

// DecodeData re-decodes env.Data into T. Envelope.Data is declared `any` so
// the store can persist any of the eight payload kinds without a type
// switch (spec.md §3); after a round trip through JSON, Data comes back as
// a generic map, so callers that need the concrete payload call this
// helper instead of a bare type assertion.
func DecodeData[T any](env model.Envelope) (T, error) {
	var out T
	raw, err := json.Marshal(env.Data)
	if err != nil {
		return out, forgeerr.Wrap(forgeerr.Serialize, "re-marshaling envelope data", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, forgeerr.Wrap(forgeerr.Serialize, "decoding envelope data", err)
	}
	return out, nil
}
