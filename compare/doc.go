// Package compare computes structural differences between a recorded
// snapshot value and a freshly captured one.
//
// Objects are compared key by key, arrays position by position (a length
// change is one discrepancy, followed by the differences of the common
// prefix) and scalars by exact equality. Integers and floats compare by
// numeric value. The resulting Result renders either as the standard report
// or as the flat legacy report; both derive from the same discrepancies.
package compare
