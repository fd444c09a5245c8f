package features

// rollingMean computes a causal w-session moving average: index i covers
// vals[i-w+1 .. i] and is undefined until a full window exists.
func rollingMean(vals []float64, w int) []Value {
	out := make([]Value, len(vals))
	if w <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= w {
			sum -= vals[i-w]
		}
		if i >= w-1 {
			out[i] = Some(sum / float64(w))
		}
	}
	return out
}

// rollingMax and rollingMin cover the same trailing window as rollingMean.
// Windows here are small single digits, so the quadratic scan beats a deque.
func rollingMax(vals []float64, w int) []Value {
	out := make([]Value, len(vals))
	for i := range vals {
		if i < w-1 {
			continue
		}
		m := vals[i]
		for j := i - w + 1; j < i; j++ {
			if vals[j] > m {
				m = vals[j]
			}
		}
		out[i] = Some(m)
	}
	return out
}

func rollingMin(vals []float64, w int) []Value {
	out := make([]Value, len(vals))
	for i := range vals {
		if i < w-1 {
			continue
		}
		m := vals[i]
		for j := i - w + 1; j < i; j++ {
			if vals[j] < m {
				m = vals[j]
			}
		}
		out[i] = Some(m)
	}
	return out
}

// fromTalib marks the zero-padded warmup prefix of a ta-lib output series as
// undefined. lookback is the index of the first trustworthy value.
func fromTalib(series []float64, lookback int) []Value {
	out := make([]Value, len(series))
	for i := lookback; i < len(series); i++ {
		out[i] = Some(series[i])
	}
	return out
}

// undefinedSeries is the all-invalid column used when a symbol has less
// history than an indicator's warmup needs.
func undefinedSeries(n int) []Value {
	return make([]Value, n)
}
