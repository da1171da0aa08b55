package track

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/trajectory.report/internal/config"
)

// State dimensions: [x y z vx vy vz] against 3D position measurements.
const (
	stateDim = 6
	measDim  = 3
)

// MinDeterminantThreshold is the minimum innovation-covariance
// determinant accepted before inversion. Below it the matrix is
// treated as singular.
const MinDeterminantThreshold = 1e-12

// Errors surfaced by the filter recursion.
var (
	// ErrNonMonotonicTime is returned when a predict or bootstrap step
	// sees dt <= 0.
	ErrNonMonotonicTime = errors.New("non-monotonic measurement time")
	// ErrSingularInnovation is returned when the innovation covariance
	// cannot be inverted during gating or update.
	ErrSingularInnovation = errors.New("singular innovation covariance")
)

// Phase is the filter's bootstrap state. Transitions are strictly
// forward: Uninitialized -> Bootstrap1 -> Bootstrap2 -> Tracking.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseBootstrap1
	PhaseBootstrap2
	PhaseTracking
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseBootstrap1:
		return "bootstrap1"
	case PhaseBootstrap2:
		return "bootstrap2"
	case PhaseTracking:
		return "tracking"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Config holds the tunable parameters of the estimation core.
type Config struct {
	MaxTimeDiff           float64 // scan grouping window (seconds)
	ProcessNoiseIntensity float64 // plant noise scale
	MeasurementNoise      float64 // R diagonal (position variance)
	GateThreshold         float64 // chi-square cutoff for gating
	InitialCovariance     float64 // initial state covariance diagonal
}

// DefaultConfig returns the built-in defaults. These match
// config/tuning.defaults.json; the daemon loads that file and builds
// its Config via ConfigFromTuning instead.
func DefaultConfig() Config {
	return Config{
		MaxTimeDiff:           DefaultMaxTimeDiff,
		ProcessNoiseIntensity: 20.0,
		MeasurementNoise:      1.0,
		GateThreshold:         config.DefaultGateThreshold,
		InitialCovariance:     1.0,
	}
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MaxTimeDiff:           cfg.GetMaxTimeDiff(),
		ProcessNoiseIntensity: cfg.GetProcessNoiseIntensity(),
		MeasurementNoise:      cfg.GetMeasurementNoise(),
		GateThreshold:         cfg.GetGateThreshold(),
		InitialCovariance:     cfg.GetInitialCovariance(),
	}
}

// Filter is a constant-velocity Kalman filter over one track's
// six-component state. It owns the state vector, its covariance, and
// the transient prediction consumed by gating and update.
//
// The filter is single-owner and not safe for concurrent use; the
// tracking loop is the sole mutator.
type Filter struct {
	cfg   Config
	alloc *Allocator

	id    int
	phase Phase

	sf *mat.VecDense // filter state [x y z vx vy vz]
	pf *mat.Dense    // state covariance 6x6
	sp *mat.VecDense // predicted state
	pp *mat.Dense    // predicted covariance

	h *mat.Dense // measurement matrix 3x6 (position selector)
	r *mat.Dense // measurement noise covariance 3x3

	measTime float64
	prevTime float64

	// Finite-difference velocity estimate from the first two reports.
	// Recorded during bootstrap but never written into the state.
	bootstrapVel [3]float64

	firstPos [3]float64
}

// NewFilter creates an uninitialized filter. The track id is allocated
// from alloc when the first measurement arrives.
func NewFilter(cfg Config, alloc *Allocator) *Filter {
	h := mat.NewDense(measDim, stateDim, nil)
	for i := 0; i < measDim; i++ {
		h.Set(i, i, 1)
	}
	r := mat.NewDense(measDim, measDim, nil)
	for i := 0; i < measDim; i++ {
		r.Set(i, i, cfg.MeasurementNoise)
	}
	pf := mat.NewDense(stateDim, stateDim, nil)
	pp := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		pf.Set(i, i, cfg.InitialCovariance)
		pp.Set(i, i, cfg.InitialCovariance)
	}

	return &Filter{
		cfg:   cfg,
		alloc: alloc,
		phase: PhaseUninitialized,
		sf:    mat.NewVecDense(stateDim, nil),
		pf:    pf,
		sp:    mat.NewVecDense(stateDim, nil),
		pp:    pp,
		h:     h,
		r:     r,
	}
}

// ID returns the allocated track id, or 0 before the first measurement.
func (f *Filter) ID() int { return f.id }

// Phase returns the current bootstrap phase.
func (f *Filter) Phase() Phase { return f.phase }

// GateThreshold returns the configured chi-square cutoff.
func (f *Filter) GateThreshold() float64 { return f.cfg.GateThreshold }

// SetGateThreshold replaces the chi-square cutoff. Used by sweep-style
// tooling; takes effect on the next gating call.
func (f *Filter) SetGateThreshold(threshold float64) { f.cfg.GateThreshold = threshold }

// LastMeasurementTime returns the most recent report time seen.
func (f *Filter) LastMeasurementTime() float64 { return f.measTime }

// BootstrapVelocity returns the finite-difference velocity recorded
// from the first two reports.
func (f *Filter) BootstrapVelocity() [3]float64 { return f.bootstrapVel }

// State returns a copy of the filter state vector.
func (f *Filter) State() [stateDim]float64 {
	var out [stateDim]float64
	for i := 0; i < stateDim; i++ {
		out[i] = f.sf.AtVec(i)
	}
	return out
}

// Covariance returns a copy of the state covariance.
func (f *Filter) Covariance() *mat.Dense {
	out := mat.NewDense(stateDim, stateDim, nil)
	out.Copy(f.pf)
	return out
}

// PredictedState returns a copy of the last prediction's state vector.
func (f *Filter) PredictedState() [stateDim]float64 {
	var out [stateDim]float64
	for i := 0; i < stateDim; i++ {
		out[i] = f.sp.AtVec(i)
	}
	return out
}

// PredictedCovariance returns a copy of the last predicted covariance.
func (f *Filter) PredictedCovariance() *mat.Dense {
	out := mat.NewDense(stateDim, stateDim, nil)
	out.Copy(f.pp)
	return out
}

// Observe advances the bootstrap state machine with a new report.
//
// The first report seeds the position components and claims a track
// id. The second records a finite-difference velocity estimate without
// touching the state. The third transitions to Tracking; from then on
// Observe only advances the measurement clock and the caller runs the
// predict/associate/update cycle.
func (f *Filter) Observe(m Measurement) error {
	switch f.phase {
	case PhaseUninitialized:
		f.sf.SetVec(0, m.X)
		f.sf.SetVec(1, m.Y)
		f.sf.SetVec(2, m.Z)
		f.firstPos = [3]float64{m.X, m.Y, m.Z}
		f.measTime = m.Time
		f.prevTime = m.Time
		f.id = f.alloc.Allocate()
		f.alloc.Occupy(f.id)
		f.phase = PhaseBootstrap1
		return nil

	case PhaseBootstrap1:
		dt := m.Time - f.measTime
		if dt <= 0 {
			return fmt.Errorf("bootstrap velocity: %w (dt=%g)", ErrNonMonotonicTime, dt)
		}
		f.bootstrapVel = [3]float64{
			(f.firstPos[0] - m.X) / dt,
			(f.firstPos[1] - m.Y) / dt,
			(f.firstPos[2] - m.Z) / dt,
		}
		f.prevTime = f.measTime
		f.measTime = m.Time
		f.phase = PhaseBootstrap2
		return nil

	case PhaseBootstrap2:
		f.prevTime = f.measTime
		f.measTime = m.Time
		f.phase = PhaseTracking
		return nil

	default: // PhaseTracking
		f.prevTime = f.measTime
		f.measTime = m.Time
		return nil
	}
}

// Predict propagates state and covariance to currentTime under the
// constant-velocity model. The results land in the predicted
// state/covariance, leaving the filtered state untouched.
func (f *Filter) Predict(currentTime float64) error {
	dt := currentTime - f.prevTime
	if dt <= 0 {
		return fmt.Errorf("predict: %w (dt=%g)", ErrNonMonotonicTime, dt)
	}

	phi := transitionMatrix(dt)
	q := processNoise(dt, f.cfg.ProcessNoiseIntensity)

	f.sp.MulVec(phi, f.sf)

	var phiP, pPred mat.Dense
	phiP.Mul(phi, f.pf)
	pPred.Mul(&phiP, phi.T())
	pPred.Add(&pPred, q)
	f.pp.Copy(&pPred)

	f.measTime = currentTime
	return nil
}

// Gate runs the chi-square validation test for m against the current
// prediction. It returns whether m falls inside the gate and the
// squared Mahalanobis distance.
func (f *Filter) Gate(m Measurement) (bool, float64, error) {
	d2, err := f.MahalanobisSquared(m)
	if err != nil {
		return false, 0, err
	}
	return d2 < f.cfg.GateThreshold, d2, nil
}

// MahalanobisSquared computes the squared Mahalanobis distance of m
// from the predicted measurement under the innovation covariance.
func (f *Filter) MahalanobisSquared(m Measurement) (float64, error) {
	nu, s := f.innovation(m)

	sInv, err := invertInnovation(s)
	if err != nil {
		return 0, err
	}

	var tmp mat.VecDense
	tmp.MulVec(sInv, nu)
	return mat.Dot(nu, &tmp), nil
}

// Update folds the chosen measurement into the state using the Kalman
// gain. On success the filtered state and covariance are overwritten;
// the prediction is left in place as the fallback estimate for cycles
// with no associated measurement. On failure the previous filtered
// state is untouched.
func (f *Filter) Update(m Measurement) error {
	nu, s := f.innovation(m)

	sInv, err := invertInnovation(s)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	// K = Pp * H^T * S^-1
	var pht, k mat.Dense
	pht.Mul(f.pp, f.h.T())
	k.Mul(&pht, sInv)

	// Sf = Sp + K*nu
	var corr mat.VecDense
	corr.MulVec(&k, nu)
	newSf := mat.NewVecDense(stateDim, nil)
	newSf.AddVec(f.sp, &corr)

	// Pf = (I - K*H) * Pp
	var kh mat.Dense
	kh.Mul(&k, f.h)
	ikh := identity(stateDim)
	ikh.Sub(ikh, &kh)
	var newPf mat.Dense
	newPf.Mul(ikh, f.pp)

	f.sf.CopyVec(newSf)
	f.pf.Copy(&newPf)
	return nil
}

// Coast adopts the current prediction as the filtered estimate. Used
// when a cycle ends with no associated measurement.
func (f *Filter) Coast() {
	f.sf.CopyVec(f.sp)
	f.pf.Copy(f.pp)
}

// innovation returns nu = z - H*Sp and S = H*Pp*H^T + R for m.
func (f *Filter) innovation(m Measurement) (*mat.VecDense, *mat.Dense) {
	z := mat.NewVecDense(measDim, []float64{m.X, m.Y, m.Z})

	var hx mat.VecDense
	hx.MulVec(f.h, f.sp)
	nu := mat.NewVecDense(measDim, nil)
	nu.SubVec(z, &hx)

	var hp, s mat.Dense
	hp.Mul(f.h, f.pp)
	s.Mul(&hp, f.h.T())
	s.Add(&s, f.r)

	return nu, &s
}

// invertInnovation inverts the 3x3 innovation covariance, rejecting
// matrices whose determinant is below MinDeterminantThreshold.
func invertInnovation(s *mat.Dense) (*mat.Dense, error) {
	if det := mat.Det(s); det < MinDeterminantThreshold {
		return nil, fmt.Errorf("%w (det=%g)", ErrSingularInnovation, det)
	}
	var sInv mat.Dense
	if err := sInv.Inverse(s); err != nil {
		// A Condition error still carries a usable inverse; anything
		// else means the inversion failed outright.
		if _, ok := err.(mat.Condition); !ok {
			return nil, fmt.Errorf("%w: %v", ErrSingularInnovation, err)
		}
	}
	return &sInv, nil
}

// transitionMatrix builds the CV state transition: identity with
// Phi[i,i+3] = dt so position advances by velocity*dt.
func transitionMatrix(dt float64) *mat.Dense {
	phi := identity(stateDim)
	for i := 0; i < measDim; i++ {
		phi.Set(i, i+measDim, dt)
	}
	return phi
}

// processNoise builds the discretized white-noise-acceleration Q:
// dt^3/3 position blocks, dt velocity blocks, dt^2/2 symmetric cross
// terms, scaled by the plant noise intensity.
func processNoise(dt, intensity float64) *mat.Dense {
	t2 := dt * dt / 2.0
	t3 := dt * dt * dt / 3.0

	q := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < measDim; i++ {
		q.Set(i, i, t3)
		q.Set(i+measDim, i+measDim, dt)
		q.Set(i, i+measDim, t2)
		q.Set(i+measDim, i, t2)
	}
	q.Scale(intensity, q)
	return q
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
