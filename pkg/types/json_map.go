package types

// JSONMap stores an arbitrary JSON object; columns using it are tagged with
// serializer:json.
type JSONMap map[string]any

// Merge returns a copy of j with other's keys layered on top.
func (j JSONMap) Merge(other map[string]any) JSONMap {
	out := make(JSONMap, len(j)+len(other))
	for k, v := range j {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
