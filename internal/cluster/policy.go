package cluster

// KPolicy chooses the number of clusters for n candidates.
type KPolicy func(n int) int

// StepK is the default policy: fewer items get fewer clusters, capped at 12
// so large windows do not fragment.
func StepK(n int) int {
	switch {
	case n < 50:
		return 3
	case n < 150:
		return 6
	case n < 400:
		return 10
	default:
		return 12
	}
}
