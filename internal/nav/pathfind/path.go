package pathfind

// PathResult is an ordered route from start toward goal. Complete is false
// when the route is a best-effort prefix returned under a work budget.
type PathResult[T any] struct {
	Value    []T
	Complete bool
}

func (r PathResult[T]) Len() int { return len(r.Value) }

// pathTrace appends from, then its predecessor, and so on until a node with
// no entry in pred (a root). The step guard bounds a corrupted, cyclic map.
func pathTrace[K comparable](from K, pred map[K]K, out []K) []K {
	cur := from
	for steps := 0; steps <= len(pred); steps++ {
		out = append(out, cur)
		next, ok := pred[cur]
		if !ok {
			break
		}
		cur = next
	}
	return out
}

func reverse[K any](s []K) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// BuildPath stitches forward and backward predecessor chains at split into
// one start..split..goal sequence. split appears once.
func BuildPath[K comparable](forward, backward map[K]K, split K) []K {
	out := pathTrace(split, forward, nil)
	reverse(out)
	tail := pathTrace(split, backward, nil)
	return append(out, tail[1:]...)
}

// BuildPathForward reconstructs start..goal from a single predecessor map.
func BuildPathForward[K comparable](forward map[K]K, goal K) []K {
	out := pathTrace(goal, forward, nil)
	reverse(out)
	return out
}
