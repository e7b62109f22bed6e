package simstate

import (
	"fmt"
	"math/rand"
)

// synthesizeResult derives a synthetic result for a test code. The trailing
// decimal digits of the code select the band: an even integer trails a
// uniform integer count in mg/dL, an odd integer trails a uniform real in
// mmol/L, and a non-numeric trailer falls back to a uniform real in U/L.
// Values are synthetic and carry no clinical meaning.
func synthesizeResult(testCode string) Result {
	n, ok := trailingInt(testCode)
	switch {
	case ok && n%2 == 0:
		v := 10 + rand.Intn(91) // [10,100]
		return Result{Value: fmt.Sprintf("%d", v), Unit: "mg/dL"}
	case ok:
		v := 1.0 + rand.Float64()*9.0 // [1.0,10.0]
		return Result{Value: fmt.Sprintf("%.2f", v), Unit: "mmol/L"}
	default:
		v := rand.Float64() * 100.0 // [0.0,100.0]
		return Result{Value: fmt.Sprintf("%.2f", v), Unit: "U/L"}
	}
}

// trailingInt parses the maximal run of trailing decimal digits in code as
// an integer. It reports false if code has no trailing digits.
func trailingInt(code string) (int, bool) {
	end := len(code)
	start := end
	for start > 0 && code[start-1] >= '0' && code[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	n := 0
	for i := start; i < end; i++ {
		n = n*10 + int(code[i]-'0')
	}
	return n, true
}

func synthesizeResults(tests []string) map[string]Result {
	out := make(map[string]Result, len(tests))
	for _, t := range tests {
		out[t] = synthesizeResult(t)
	}
	return out
}
