// Package statsink provides the Stats port spec.md §6 injects into
// reporting code: a streaming statistics sink over a sequence of
// float64 samples (response times, queue lengths, and the like).
package statsink

// Stats is a streaming statistics sink: add(x), count, average,
// variance, min, max, quantiles(qs), per spec.md §6.
type Stats interface {
	Add(x float64)
	Count() int64
	Average() float64
	Variance() float64
	Min() float64
	Max() float64
	Quantiles(qs []float64) map[float64]float64
}
