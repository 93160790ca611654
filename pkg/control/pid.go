// Package control holds the two motion-control strategies: a closed-loop
// PID for joints with position feedback and an open-loop time-based
// controller for the plain DC actuators. Both belong to the single
// control loop that owns the mission; they are not safe for concurrent
// use and do not need to be.
package control

import "math"

const (
	minDT          = 0.001
	defaultDT      = 0.02
	historySamples = 128
)

// Sample is one diagnostic record of a PID step.
type Sample struct {
	Setpoint    float64
	Measurement float64
	P, I, D     float64
	Output      float64
}

// PIDConfig sets up a PID controller.
type PIDConfig struct {
	Kp, Ki, Kd float64

	// Anti-windup bounds on the accumulated integral term.
	IntegralMin, IntegralMax float64

	// Actuator output bounds (PWM range).
	OutputMin, OutputMax float64

	// Low-pass coefficient for the derivative term, 0..1. Higher means
	// heavier filtering. Zero disables the filter.
	DerivativeAlpha float64

	// Nominal loop period in seconds, used when Compute gets dt <= 0.
	NominalDT float64
}

// PID is a proportional-integral-derivative controller with anti-windup
// and a filtered derivative.
type PID struct {
	cfg PIDConfig

	integral  float64
	prevErr   float64
	prevDeriv float64
	primed    bool

	history [historySamples]Sample
	histLen int
	histPos int
}

// NewPID builds a controller. Zero output bounds mean unbounded.
func NewPID(cfg PIDConfig) *PID {
	if cfg.NominalDT <= 0 {
		cfg.NominalDT = defaultDT
	}
	return &PID{cfg: cfg}
}

// Compute advances the controller one step and returns the clamped
// actuator output. dt is seconds since the previous step; pass 0 to use
// the nominal period.
func (p *PID) Compute(setpoint, measurement, dt float64) float64 {
	if dt <= 0 {
		dt = p.cfg.NominalDT
	}
	if dt < minDT {
		dt = minDT
	}

	err := setpoint - measurement

	pTerm := p.cfg.Kp * err

	p.integral += err * dt
	if p.cfg.IntegralMin != 0 || p.cfg.IntegralMax != 0 {
		p.integral = math.Max(p.cfg.IntegralMin, math.Min(p.cfg.IntegralMax, p.integral))
	}
	iTerm := p.cfg.Ki * p.integral

	// Derivative on the error signal, low-pass filtered to keep sensor
	// noise out of the output.
	rawDeriv := 0.0
	if p.primed {
		rawDeriv = (err - p.prevErr) / dt
	}
	deriv := p.cfg.DerivativeAlpha*p.prevDeriv + (1-p.cfg.DerivativeAlpha)*rawDeriv
	dTerm := p.cfg.Kd * deriv

	out := pTerm + iTerm + dTerm
	if p.cfg.OutputMin != 0 || p.cfg.OutputMax != 0 {
		out = math.Max(p.cfg.OutputMin, math.Min(p.cfg.OutputMax, out))
	}

	p.prevErr = err
	p.prevDeriv = deriv
	p.primed = true

	p.record(Sample{
		Setpoint:    setpoint,
		Measurement: measurement,
		P:           pTerm,
		I:           iTerm,
		D:           dTerm,
		Output:      out,
	})
	return out
}

// Reset zeroes the integral, previous error and filtered derivative, so
// the next Compute behaves like the first call on a fresh controller.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.prevDeriv = 0
	p.primed = false
}

// SetGains replaces the gains at runtime. State is kept; call Reset if
// the change is large enough that the old integral no longer applies.
func (p *PID) SetGains(kp, ki, kd float64) {
	p.cfg.Kp, p.cfg.Ki, p.cfg.Kd = kp, ki, kd
}

func (p *PID) record(s Sample) {
	p.history[p.histPos] = s
	p.histPos = (p.histPos + 1) % historySamples
	if p.histLen < historySamples {
		p.histLen++
	}
}

// History returns the retained samples, oldest first.
func (p *PID) History() []Sample {
	out := make([]Sample, 0, p.histLen)
	start := p.histPos - p.histLen
	if start < 0 {
		start += historySamples
	}
	for i := 0; i < p.histLen; i++ {
		out = append(out, p.history[(start+i)%historySamples])
	}
	return out
}
