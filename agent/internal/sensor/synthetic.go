package sensor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/motortwin/motortwin/pkg/types"
)

// Starting point and fixed speed of the synthetic motor.
const (
	synthStartTemp  = 45.0
	synthStartVib   = 2.5
	synthStartLoad  = 35
	synthRPM        = 1480
	synthMinLoad    = 10
	synthMaxLoad    = 100
	synthLoadStep   = 3
	synthHeatFactor = 0.03
	synthVibFactor  = 0.02
	synthTempNoise  = 0.4
	synthVibNoise   = 0.1
	synthNeutralTmp = 60.0
)

// Synthetic is a simulated motor. Load follows a bounded random walk, heat
// builds with load and vibration grows once the motor runs above 60 °C.
// Left alone it drifts toward overheating, which exercises the server's
// trend and anomaly paths.
type Synthetic struct {
	mu      sync.Mutex
	motorID string
	rng     *rand.Rand
	now     func() time.Time

	temp float64
	vib  float64
	load int
}

// NewSynthetic returns a generator for motorID. A zero seed is replaced by
// the current time.
func NewSynthetic(motorID string, seed int64) *Synthetic {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Synthetic{
		motorID: motorID,
		rng:     rand.New(rand.NewSource(seed)), //nolint:gosec // simulation
		now:     time.Now,
		temp:    synthStartTemp,
		vib:     synthStartVib,
		load:    synthStartLoad,
	}
}

// Read advances the simulation one step.
func (s *Synthetic) Read(_ context.Context) (types.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load += s.rng.Intn(2*synthLoadStep+1) - synthLoadStep
	s.load = max(synthMinLoad, min(s.load, synthMaxLoad))

	s.temp += float64(s.load)*synthHeatFactor + s.uniform(synthTempNoise)
	s.vib += (s.temp-synthNeutralTmp)*synthVibFactor + s.uniform(synthVibNoise)

	return types.Reading{
		MotorID:     s.motorID,
		Temperature: types.Round2(s.temp),
		Vibration:   types.Round2(s.vib),
		RPM:         synthRPM,
		Load:        float64(s.load),
		Timestamp:   types.UnixSeconds(s.now()),
	}, nil
}

// uniform returns a value in [-span, span).
func (s *Synthetic) uniform(span float64) float64 {
	return (s.rng.Float64()*2 - 1) * span
}
