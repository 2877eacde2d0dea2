package model

import (
	"math"
	"strconv"
)

// AppendFloat appends the document encoding of v to dst.
// Non-finite values are written as the bare tokens Inf, -Inf and NaN;
// fastjson and strconv.ParseFloat both accept this spelling, while
// encoding/json would refuse to emit the value at all.
func AppendFloat(dst []byte, v float64) []byte {
	switch {
	case math.IsInf(v, 1):
		return append(dst, "Inf"...)
	case math.IsInf(v, -1):
		return append(dst, "-Inf"...)
	case math.IsNaN(v):
		return append(dst, "NaN"...)
	}
	return strconv.AppendFloat(dst, v, 'g', -1, 64)
}

// FormatFloat renders v with the shortest representation that round-trips,
// e.g. "0.0003" or "7.125172406420199e+27".
func FormatFloat(v float64) string {
	return string(AppendFloat(nil, v))
}
