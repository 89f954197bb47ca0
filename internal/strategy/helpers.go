package strategy

// sma computes the simple moving average of the last period values ending at
// index end (inclusive). The caller guarantees end+1 >= period.
func sma(values []float64, end, period int) float64 {
	sum := 0.0
	for i := end - period + 1; i <= end; i++ {
		sum += values[i]
	}
	return sum / float64(period)
}
