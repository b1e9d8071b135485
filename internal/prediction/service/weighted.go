package service

// weightedAverage weights prices by 1/(rank+1); prices must be newest first.
func weightedAverage(prices []float64) (float64, bool) {
	if len(prices) == 0 {
		return 0, false
	}
	var sum, weights float64
	for rank, p := range prices {
		w := 1 / float64(rank+1)
		sum += p * w
		weights += w
	}
	return sum / weights, true
}
