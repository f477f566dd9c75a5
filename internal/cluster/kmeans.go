package cluster

import "math/rand/v2"

// KMeans partitions points into k groups using k-means++ seeding followed by
// Lloyd refinement. The same points, k and seed always give the same result.
// It returns each point's group index and the final centroids. k is clamped
// to [1, len(points)].
func KMeans(points [][]float64, k int, seed int64, maxIter int) ([]int, [][]float64) {
	n := len(points)
	if n == 0 {
		return nil, nil
	}
	k = min(max(k, 1), n)

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	centroids := seedCentroids(points, k, rng)
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			c := nearest(p, centroids)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		updateCentroids(points, assign, centroids)
	}
	return assign, centroids
}

// seedCentroids picks k starting centroids, each new one with probability
// proportional to its squared distance from the nearest chosen so far.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	chosen := make([]bool, n)
	centroids := make([][]float64, 0, k)

	first := rng.IntN(n)
	chosen[first] = true
	centroids = append(centroids, clone(points[first]))

	dist := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			dist[i] = sqDist(p, centroids[nearest(p, centroids)])
			total += dist[i]
		}

		pick := -1
		if total > 0 {
			r := rng.Float64() * total
			var acc float64
			for i, d := range dist {
				acc += d
				if acc > r && !chosen[i] {
					pick = i
					break
				}
			}
		}
		// Every remaining point coincides with a centroid, or rounding left
		// r past the end: take the first unused point.
		if pick < 0 {
			for i := range chosen {
				if !chosen[i] {
					pick = i
					break
				}
			}
		}
		chosen[pick] = true
		centroids = append(centroids, clone(points[pick]))
	}
	return centroids
}

// updateCentroids moves each centroid to the mean of its members. A centroid
// with no members stays where it was.
func updateCentroids(points [][]float64, assign []int, centroids [][]float64) {
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, len(centroids[c]))
	}
	for i, p := range points {
		c := assign[i]
		counts[c]++
		for d := 0; d < len(sums[c]) && d < len(p); d++ {
			sums[c][d] += p[d]
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for d := range centroids[c] {
			centroids[c][d] = sums[c][d] / float64(counts[c])
		}
	}
}

// nearest returns the index of the closest centroid; ties go to the lowest index.
func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, sqDist(p, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := sqDist(p, centroids[c]); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := 0; i < len(a) && i < len(b); i++ {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
