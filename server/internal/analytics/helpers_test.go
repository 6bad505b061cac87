package analytics

import "github.com/motortwin/motortwin/pkg/types"

// series builds n chronological readings whose temperature and vibration
// grow linearly from t0/v0 by tStep/vStep per reading.
func series(n int, t0, tStep, v0, vStep float64) []types.Reading {
	out := make([]types.Reading, n)
	for i := range out {
		out[i] = types.Reading{
			Temperature: t0 + float64(i)*tStep,
			Vibration:   v0 + float64(i)*vStep,
			RPM:         1480,
			Load:        35,
			Timestamp:   float64(1700000000 + 2*i),
		}
	}
	return out
}

func flat(n int, temp, vib float64) []types.Reading {
	return series(n, temp, 0, vib, 0)
}
