package runtime

import "github.com/aretw0/arbor/pkg/domain"

// DeepMerge returns base overlaid by overlay without mutating either.
// Maps merge recursively, lists merge index-wise, anything else is replaced by the overlay.
func DeepMerge(base, overlay map[string]any) map[string]any {
	out := domain.CloneMap(base)
	if out == nil {
		out = make(map[string]any, len(overlay))
	}
	for k, ov := range overlay {
		bv, exists := out[k]
		if !exists {
			out[k] = domain.CloneValue(ov)
			continue
		}
		out[k] = mergeValue(bv, ov)
	}
	return out
}

func mergeValue(base, overlay any) any {
	if bm, ok := asMap(base); ok {
		if om, ok := asMap(overlay); ok {
			return DeepMerge(bm, om)
		}
	}
	if bl, ok := base.([]any); ok {
		if ol, ok := overlay.([]any); ok {
			return mergeList(bl, ol)
		}
	}
	return domain.CloneValue(overlay)
}

func mergeList(base, overlay []any) []any {
	n := len(base)
	if len(overlay) > n {
		n = len(overlay)
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		switch {
		case i < len(overlay) && i < len(base):
			out[i] = mergeValue(base[i], overlay[i])
		case i < len(overlay):
			out[i] = domain.CloneValue(overlay[i])
		default:
			out[i] = domain.CloneValue(base[i])
		}
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case domain.Description:
		return t, true
	}
	return nil, false
}

// MergeParams layers maps left to right; later maps win on key conflicts.
func MergeParams(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// RemapKeys renames the keys of data present in mapping; other keys are kept.
func RemapKeys(data map[string]any, mapping map[string]string) map[string]any {
	if len(mapping) == 0 {
		return data
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if nk, ok := mapping[k]; ok && nk != "" {
			out[nk] = v
			continue
		}
		out[k] = v
	}
	return out
}
