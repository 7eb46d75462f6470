// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package filter

import "math"

// designCoeffs computes the biquad coefficients for one filter type at the
// given frequency (pre-warped here via preWarp), linear gain, and Q, split
// between the
// boost (V0 >= 1) and cut (V0 < 1) cases per spec.md §4.10/§8 (Zölzer-style
// shelving and peaking design equations).
func designCoeffs(typ Type, freq, gain, quality, sampleRate float64) (coeffs, error) {
	k := preWarp(freq, sampleRate)
	v0 := gain

	switch typ {
	case Flat:
		return coeffs{b0: 1}, nil

	case LowPass:
		d := k + 1
		return coeffs{b0: k / d, b1: k / d, a1: (k - 1) / d}, nil

	case HighPass:
		d := k + 1
		return coeffs{b0: 1 / d, b1: -1 / d, a1: (k - 1) / d}, nil

	case Peak:
		return designPeak(k, v0, quality), nil

	case BandPass:
		return designBandPass(k, quality), nil

	case LowShelving:
		return designLowShelf(k, v0), nil

	case HighShelving:
		return designHighShelf(k, v0), nil

	default:
		return coeffs{}, errInvalidFilterParam
	}
}

func designPeak(k, v0, q float64) coeffs {
	k2 := k * k
	if v0 >= 1 {
		d := 1 + k/q + k2
		return coeffs{
			b0: (1 + v0*k/q + k2) / d,
			b1: 2 * (k2 - 1) / d,
			b2: (1 - v0*k/q + k2) / d,
			a1: 2 * (k2 - 1) / d,
			a2: (1 - k/q + k2) / d,
		}
	}
	d := 1 + k/(v0*q) + k2
	return coeffs{
		b0: (1 + k/q + k2) / d,
		b1: 2 * (k2 - 1) / d,
		b2: (1 - k/q + k2) / d,
		a1: 2 * (k2 - 1) / d,
		a2: (1 - k/(v0*q) + k2) / d,
	}
}

func designBandPass(k, q float64) coeffs {
	k2 := k * k
	d := 1 + k/q + k2
	b0 := (k / q) / d
	return coeffs{
		b0: b0,
		b1: 0,
		b2: -b0,
		a1: 2 * (k2 - 1) / d,
		a2: (1 - k/q + k2) / d,
	}
}

func designLowShelf(k, v0 float64) coeffs {
	k2 := k * k
	sqrt2 := math.Sqrt2
	if v0 >= 1 {
		sq := math.Sqrt(2 * v0)
		d := 1 + sqrt2*k + k2
		return coeffs{
			b0: (1 + sq*k + v0*k2) / d,
			b1: 2 * (v0*k2 - 1) / d,
			b2: (1 - sq*k + v0*k2) / d,
			a1: 2 * (k2 - 1) / d,
			a2: (1 - sqrt2*k + k2) / d,
		}
	}
	sq := math.Sqrt(2 / v0)
	d := 1 + sq*k + k2/v0
	return coeffs{
		b0: (1 + sqrt2*k + k2) / d,
		b1: 2 * (k2 - 1) / d,
		b2: (1 - sqrt2*k + k2) / d,
		a1: 2 * (k2/v0 - 1) / d,
		a2: (1 - sq*k + k2/v0) / d,
	}
}

func designHighShelf(k, v0 float64) coeffs {
	k2 := k * k
	sqrt2 := math.Sqrt2
	if v0 >= 1 {
		sq := math.Sqrt(2 * v0)
		d := 1 + sqrt2*k + k2
		return coeffs{
			b0: (v0 + sq*k + k2) / d,
			b1: 2 * (k2 - v0) / d,
			b2: (v0 - sq*k + k2) / d,
			a1: 2 * (k2 - 1) / d,
			a2: (1 - sqrt2*k + k2) / d,
		}
	}
	sq := math.Sqrt(2 / v0)
	d := v0 + sq*v0*k + k2
	return coeffs{
		b0: (1 + sqrt2*k + k2) / d,
		b1: 2 * (k2 - 1) / d,
		b2: (1 - sqrt2*k + k2) / d,
		a1: 2 * (k2 - v0) / d,
		a2: (v0 - sq*v0*k + k2) / d,
	}
}
