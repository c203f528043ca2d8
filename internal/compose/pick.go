package compose

// Pick selects one of items proportionally to weights, drawing exactly one
// value from next. It walks the items subtracting each weight from
// next()*total and returns the item at which the remainder reaches zero; if
// rounding leaves nothing selected the last item is returned. Empty input
// returns false without drawing. Negative weights count as zero.
func Pick[T any](items []T, weights []int, next func() float64) (T, bool) {
	var zero T
	if len(items) == 0 || len(weights) != len(items) {
		return zero, false
	}
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	r := next() * float64(total)
	for i, item := range items {
		if w := weights[i]; w > 0 {
			r -= float64(w)
		}
		if r <= 0 {
			return item, true
		}
	}
	return items[len(items)-1], true
}
