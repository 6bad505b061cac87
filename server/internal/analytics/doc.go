// Package analytics derives motor health signals from telemetry readings.
//
// stats.go provides the statistics primitives: Mean, StdDev (population) and
// TrendSlope, the ordinary-least-squares slope of a series against its index.
//
// anomaly.go flags a reading whose temperature or vibration lies more than
// 2.5 standard deviations from the mean of the prior history.
//
// health.go provides the two health classifiers: ClassifyTrend (slope of the
// recent history) and ClassifyScore (weighted rule score of a single reading).
// They are alternative read models over the same data and are exposed
// separately.
//
// forecast.go extrapolates temperature and vibration linearly; simulate.go
// projects a what-if load scenario. Both round outputs to 2 decimals.
//
// Every function is pure. Callers pass history slices fetched from the store;
// nothing here performs I/O or holds state between calls.
package analytics
