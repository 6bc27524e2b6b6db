// Package dataset loads the flight-level sample and applies the row filters
// and variable transforms that precede estimation.
//
// Data is held column-oriented: numeric covariates as []float64 and
// categorical identifiers (carrier, airports, time partitions) as []int
// level codes with first-seen-order interning. All transforms are total
// functions over rows with no row-to-row dependency, except route encoding,
// which assigns the same code to the same (carrier, origin, destination)
// tuple in first-seen order for reproducibility.
package dataset
