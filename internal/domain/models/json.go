// SPDX-License-Identifier: AGPL-3.0-or-later
package models

// JSON is any value produced by encoding/json's default decoding: nil, bool, float64,
// string, []interface{}, or map[string]interface{}. The core never needs a richer tagged
// variant than the standard library already gives it — canonical hashing relies on
// encoding/json sorting map keys on marshal (see pkg/crypto), not on a hand-rolled
// ordered-map type.
type JSON = interface{}

// Resource is a JSON object, usually carrying _id, _type, _meta, and optionally a
// signatures array managed by the external signer.
type Resource = map[string]interface{}

// deepCopyJSON returns a structurally independent copy of v so mask operations never
// mutate their inputs.
func deepCopyJSON(v JSON) JSON {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = deepCopyJSON(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = deepCopyJSON(val)
		}
		return out
	default:
		return t
	}
}

// DeepCopyResource returns a structurally independent copy of a resource.
func DeepCopyResource(r Resource) Resource {
	if r == nil {
		return nil
	}
	return deepCopyJSON(r).(map[string]interface{})
}
