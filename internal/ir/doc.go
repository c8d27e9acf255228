// Package ir provides the portable literal values carried by query nodes,
// their canonical JSON encoding and the content hashes derived from it.
//
// ir imports nothing internal; queryir and store build on it.
//
// Key constraints:
//   - Literal values are null, bool, int64, float64, string and arrays of these
//   - Integers and floats stay distinct on the wire (floats always carry a
//     fraction or exponent)
//   - NaN and infinities are not representable
//   - All JSON tags use snake_case
package ir
