/*
Copyright 2025 The Green Hash Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package prices

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

var errEmptySeries = errors.New("cannot forecast an empty series")

// Forecast returns exactly periods values. Longer inputs are truncated;
// shorter ones are extended along their least-squares linear trend, clamped at
// zero. A single observation is held constant.
func Forecast(values []float64, periods int) ([]float64, error) {
	if len(values) == 0 {
		return nil, errEmptySeries
	}
	if periods <= 0 {
		return []float64{}, nil
	}
	out := make([]float64, periods)
	n := copy(out, values)
	if n == periods {
		return out, nil
	}

	if len(values) == 1 {
		for t := n; t < periods; t++ {
			out[t] = values[0]
		}
		return out, nil
	}

	x := make([]float64, len(values))
	for i := range x {
		x[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(x, values, nil, false)
	for t := n; t < periods; t++ {
		out[t] = max(0, alpha+beta*float64(t))
	}
	return out, nil
}
