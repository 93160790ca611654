// Package mission runs the spray mission: search for targets, stop the
// chassis, align, extend the arm, spray, retract, resume.
package mission

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/agribotics/agribot/pkg/calib"
	"github.com/agribotics/agribot/pkg/control"
	"github.com/agribotics/agribot/pkg/kinematics"
	"github.com/agribotics/agribot/pkg/protocol"
	"github.com/agribotics/agribot/pkg/vision"
)

const defaultTick = 100 * time.Millisecond

// Consecutive failed frames before the detector is declared not ready
// and the chassis is stopped rather than driven blind.
const missedFrameLimit = 10

// Link is the slice of the serial client the sequencer needs. The link
// is a single shared resource; the sequencer is its only writer while a
// mission runs.
type Link interface {
	Do(ctx context.Context, directive string) error
	Send(directive string) error
	Connected() bool
}

// Deps are the sequencer's constructor-injected collaborators.
type Deps struct {
	Link   Link
	Source vision.Source
	Arm    *control.TimeBased

	// Solver guards extensions against the arm's travel range. Optional;
	// without it only the time clamp protects the arm.
	Solver *kinematics.Solver

	// Camera refines the pixel-to-cm ratio when intrinsics are
	// calibrated. Optional; the flat ratio is used otherwise.
	Camera *kinematics.Camera

	// Events receives the mission journal. Optional.
	Events *EventLog
}

// Options tune one mission run.
type Options struct {
	// SingleShot ends the mission in StateCompleted after the first
	// spray instead of resuming search.
	SingleShot bool

	// Tick is the search loop period. Defaults to 100ms.
	Tick time.Duration
}

// Snapshot is the sequencer state as seen by pollers (dashboard, TUI).
type Snapshot struct {
	State          State
	SprayCount     int
	ArmExtensionCm float64 // believed, open loop
	TargetOffsetPx float64
	HasTarget      bool

	// DeviceReady goes false after sustained detector frame failures
	// and back to true on the next good frame.
	DeviceReady bool

	Timestamp time.Time
}

// Sequencer owns the mission state machine and the control loop that
// drives it. At most one mission runs at a time; Start rejects overlap.
type Sequencer struct {
	link   Link
	source vision.Source
	arm    *control.TimeBased
	solver *kinematics.Solver
	camera *kinematics.Camera
	events *EventLog

	cfg  calib.Config
	opts Options

	mu         sync.Mutex
	state      State
	running    bool
	stopCh     chan struct{}
	stopOnce   *sync.Once
	sprayCount   int
	lastOffset   float64
	hasTarget    bool
	lastPWM      int
	missedFrames int

	stateCh chan Snapshot
	logCh   chan string
}

// New builds a sequencer. The calibration is taken by value and treated
// as read-only for the life of the sequencer.
func New(cfg calib.Config, deps Deps, opts Options) (*Sequencer, error) {
	if deps.Link == nil {
		return nil, fmt.Errorf("no serial link")
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("no detection source")
	}
	if deps.Arm == nil {
		deps.Arm = control.NewTimeBased(control.TimeBasedConfig{
			Speed: cfg.ArmSpeedCmPerSec,
		})
	}
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	return &Sequencer{
		link:    deps.Link,
		source:  deps.Source,
		arm:     deps.Arm,
		solver:  deps.Solver,
		camera:  deps.Camera,
		events:  deps.Events,
		cfg:     cfg,
		opts:    opts,
		state:   StateIdle,
		stateCh: make(chan Snapshot, 1),
		logCh:   make(chan string, 10),
	}, nil
}

// State returns the current mission state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SprayCount returns the sprays completed since construction.
func (s *Sequencer) SprayCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sprayCount
}

// Snapshot returns the current poller view.
func (s *Sequencer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Sequencer) snapshotLocked() Snapshot {
	return Snapshot{
		State:          s.state,
		SprayCount:     s.sprayCount,
		ArmExtensionCm: s.arm.Position(),
		TargetOffsetPx: s.lastOffset,
		HasTarget:      s.hasTarget,
		DeviceReady:    s.missedFrames < missedFrameLimit,
		Timestamp:      time.Now(),
	}
}

// States returns a channel of snapshots, newest kept when the consumer
// lags.
func (s *Sequencer) States() <-chan Snapshot {
	return s.stateCh
}

// Logs returns a channel of operator log lines.
func (s *Sequencer) Logs() <-chan string {
	return s.logCh
}

func (s *Sequencer) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case s.logCh <- msg:
	default:
		// Drop if channel full
	}
}

func (s *Sequencer) setState(st State) {
	s.mu.Lock()
	s.state = st
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (s *Sequencer) publish(snap Snapshot) {
	select {
	case s.stateCh <- snap:
	default:
		select {
		case <-s.stateCh:
		default:
		}
		s.stateCh <- snap
	}
}

// Start runs the mission loop until the context is canceled, Stop is
// called, or the mission reaches a terminal state. Starting while a
// mission is running is rejected, not queued.
func (s *Sequencer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("mission already running")
	}
	if s.state.Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("mission in %s state, reset first", s.state)
	}
	if !s.link.Connected() {
		s.mu.Unlock()
		return protocol.ErrNotConnected
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stopOnce = &sync.Once{}
	s.lastPWM = 0
	s.missedFrames = 0
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.setState(StateSearching)
	s.log("Mission started (single-shot: %v)", s.opts.SingleShot)
	s.appendEvent("start", 0, 0, "")

	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case <-s.stopCh:
			s.shutdown()
			return nil
		case <-ticker.C:
			s.step(ctx)
			if st := s.State(); st.Terminal() || st == StateIdle {
				return nil
			}
		}
	}
}

// Stop requests a graceful stop. Calling it with no mission running is
// a no-op success.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Reset returns a terminal or idle sequencer to Idle so a new mission
// can start. Rejected while a mission is running.
func (s *Sequencer) Reset() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("mission still running")
	}
	s.state = StateIdle
	s.hasTarget = false
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
	return nil
}

// EmergencyStop issues the hardware STOP_ALL override. On success the
// mission drops to Idle; a failed acknowledgment has no defined
// recovery and escalates to StateError.
func (s *Sequencer) EmergencyStop(ctx context.Context) error {
	err := s.link.Do(ctx, protocol.StopAll())
	if err != nil && !errors.Is(err, protocol.ErrEmergencyStop) {
		s.log("Emergency stop not acknowledged by controller")
		s.appendEvent("emergency_stop", 0, 0, "unacknowledged")
		s.setState(StateError)
		s.requestStop()
		return err
	}
	s.log("Emergency stop: all actuators halted")
	s.appendEvent("emergency_stop", 0, 0, "")
	s.setState(StateIdle)
	s.requestStop()
	return nil
}

func (s *Sequencer) requestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.stopOnce.Do(func() { close(s.stopCh) })
	}
}

func (s *Sequencer) shutdown() {
	// Best effort: never leave the chassis driving.
	_ = s.link.Do(context.Background(), protocol.DriveStop())
	if st := s.State(); !st.Terminal() {
		s.setState(StateIdle)
	}
	s.log("Mission stopped")
}

// step advances the mission by one loop iteration.
func (s *Sequencer) step(ctx context.Context) {
	if s.State() != StateSearching {
		return
	}
	s.searchStep(ctx)
}

// searchStep drives toward the next target and, once the chassis is on
// top of it, hard-stops and runs the spray cycle.
func (s *Sequencer) searchStep(ctx context.Context) {
	dets, ok := s.source.Next()
	if !ok {
		s.frameFailed(ctx)
		return
	}
	s.frameRecovered()

	target, found := s.pickTarget(dets)
	s.mu.Lock()
	s.hasTarget = found
	if found {
		s.lastOffset = target.OffsetFromCenterX(s.cfg)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)

	if !found {
		s.setDrive(ctx, pwmCruise)
		return
	}

	offset := target.OffsetFromCenterX(s.cfg)
	if pwm := ApproachPWM(s.cfg, offset); pwm > 0 {
		s.setDrive(ctx, pwm)
		return
	}

	// Target inside tolerance: hard stop, not a ramp.
	if err := s.link.Do(ctx, protocol.DriveStop()); err != nil {
		s.escalateStopFailure(err)
		return
	}
	s.mu.Lock()
	s.lastPWM = 0
	s.mu.Unlock()

	s.runCycle(ctx)
}

// frameFailed counts a failed detector frame. A single failure is
// transient and just retried next tick; past the limit the detector is
// declared not ready and the chassis is stopped rather than driven
// blind, until frames come back.
func (s *Sequencer) frameFailed(ctx context.Context) {
	s.mu.Lock()
	s.missedFrames++
	blind := s.missedFrames == missedFrameLimit
	driving := s.lastPWM > 0
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if !blind {
		return
	}

	s.log("Device not ready, stopping until the camera recovers")
	s.publish(snap)
	if !driving {
		return
	}
	if err := s.link.Do(ctx, protocol.DriveStop()); err != nil {
		s.escalateStopFailure(err)
		return
	}
	s.mu.Lock()
	s.lastPWM = 0
	s.mu.Unlock()
}

// frameRecovered clears the failed-frame counter on a good frame.
func (s *Sequencer) frameRecovered() {
	s.mu.Lock()
	wasBlind := s.missedFrames >= missedFrameLimit
	s.missedFrames = 0
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if wasBlind {
		s.log("Camera recovered, resuming search")
		s.publish(snap)
	}
}

// pickTarget selects the spray target nearest the image center that is
// still ahead of the chassis. Targets past image center by more than the
// alignment tolerance are behind the nozzle and counted as already
// handled; this positional filter is what prevents double-spraying on
// resume.
func (s *Sequencer) pickTarget(dets []vision.Detection) (vision.Detection, bool) {
	var best vision.Detection
	found := false
	for _, d := range dets {
		if !d.IsTarget {
			continue
		}
		off := d.OffsetFromCenterX(s.cfg)
		if off < -s.cfg.AlignmentTolerancePx {
			continue
		}
		if !found || math.Abs(off) < math.Abs(best.OffsetFromCenterX(s.cfg)) {
			best = d
			found = true
		}
	}
	return best, found
}

func (s *Sequencer) setDrive(ctx context.Context, pwm int) {
	s.mu.Lock()
	changed := pwm != s.lastPWM
	s.lastPWM = pwm
	s.mu.Unlock()
	if !changed {
		return
	}
	if err := s.link.Send(protocol.DriveForwardPWM(pwm)); err != nil {
		s.log("Drive not responding, holding position")
	}
}

// runCycle executes one stop-calculate-move spray cycle. Any directive
// failure abandons the target and resumes search; a stalled chassis
// would block the whole mission, so there are no retries here.
func (s *Sequencer) runCycle(ctx context.Context) {
	// Settle before trusting the measurement: the stop shakes the
	// camera and the detector lags the frames.
	if !s.wait(ctx, s.settleDuration()) {
		return
	}

	// One re-check, not a loop.
	dets, ok := s.source.Next()
	if !ok {
		s.log("Camera not ready after stop, resuming search")
		s.setState(StateSearching)
		return
	}
	target, found := s.pickTarget(dets)
	if !found {
		s.log("Lost target after settle, resuming search")
		s.setState(StateSearching)
		return
	}

	s.setState(StateAligning)
	offset := target.OffsetFromCenterX(s.cfg)
	if !IsAligned(s.cfg, offset) {
		if !s.alignChassis(ctx, offset) {
			return
		}
	}

	s.setState(StateExtending)
	zDist := s.zDistance(target)
	extendCm := ExtendDistanceCm(s.cfg, zDist)

	if s.solver != nil {
		if sol := s.solver.Solve(extendCm, 0, 0); !sol.Reachable {
			// Never actuate on a clamped best-effort solution.
			s.log("Target out of reach (%s), resuming search", sol.Reason)
			s.setState(StateSearching)
			return
		}
	}

	extendSecs := ExtendSeconds(s.cfg, extendCm)
	if extendSecs > 0 {
		if !s.do(ctx, protocol.ArmExtend(extendSecs)) {
			return
		}
		s.arm.Advance(extendCm)
		s.publish(s.Snapshot())
	}

	s.setState(StateSpraying)
	if !s.do(ctx, protocol.HeadDown()) {
		s.retractBestEffort(ctx, extendSecs)
		return
	}
	if !s.do(ctx, protocol.Spray(s.cfg.SprayDuration)) {
		_ = s.link.Do(ctx, protocol.HeadUp())
		s.retractBestEffort(ctx, extendSecs)
		return
	}
	// Head up before retract, or the nozzle drags through the crop.
	if !s.do(ctx, protocol.HeadUp()) {
		s.retractBestEffort(ctx, extendSecs)
		return
	}

	s.setState(StateRetracting)
	if !s.do(ctx, protocol.ArmRetract(extendSecs+s.cfg.ArmRetractBuffer)) {
		return
	}
	s.arm.ResetPosition(0)

	s.mu.Lock()
	s.sprayCount++
	count := s.sprayCount
	s.mu.Unlock()
	s.log("Sprayed target %d at (%.0f, %.0f)", count, target.X, target.Y)
	s.appendEvent("spray", target.X, target.Y, target.Class)

	if s.opts.SingleShot {
		s.setState(StateCompleted)
		s.log("Single-shot mission complete")
		return
	}
	s.setState(StateSearching)
}

// alignChassis nudges the chassis so the target sits over the nozzle
// axis. Returns false when the cycle must be abandoned.
func (s *Sequencer) alignChassis(ctx context.Context, offsetPx float64) bool {
	dir, secs := AlignPlan(s.cfg, offsetPx)
	if secs == 0 {
		return true
	}
	if err := s.link.Send(protocol.AlignStart(dir)); err != nil {
		s.log("Device not ready, skipping target")
		s.setState(StateSearching)
		return false
	}
	if !s.wait(ctx, time.Duration(secs*float64(time.Second))) {
		_ = s.link.Do(ctx, protocol.DriveStop())
		return false
	}
	if err := s.link.Do(ctx, protocol.DriveStop()); err != nil {
		s.escalateStopFailure(err)
		return false
	}
	return true
}

// zDistance returns the target's ground distance from the nozzle line
// in cm, from the bottom-anchored pixel distance.
func (s *Sequencer) zDistance(target vision.Detection) float64 {
	dPx := target.BottomDistance(s.cfg.ImageHeight)
	if s.camera != nil {
		if r := s.camera.PixelToCmRatio(s.cfg.CameraHeightCm); r > 0 {
			return dPx * r
		}
	}
	return ZDistanceCm(s.cfg, dPx)
}

// do runs one completing directive and classifies failure for the
// mission. Returns false when the cycle must be abandoned.
func (s *Sequencer) do(ctx context.Context, directive string) bool {
	err := s.link.Do(ctx, directive)
	if err == nil {
		return true
	}
	if errors.Is(err, protocol.ErrEmergencyStop) {
		s.log("Emergency stop reported by controller")
		s.appendEvent("emergency_stop", 0, 0, "hardware")
		s.setState(StateIdle)
		s.requestStop()
		return false
	}
	// Raw protocol errors stay out of the operator narrative.
	s.log("Device not ready, skipping target")
	s.setState(StateSearching)
	return false
}

// retractBestEffort tries to bring the arm home after a mid-cycle
// failure so the next cycle starts from a known pose.
func (s *Sequencer) retractBestEffort(ctx context.Context, extendSecs float64) {
	if extendSecs <= 0 {
		return
	}
	if err := s.link.Do(ctx, protocol.ArmRetract(extendSecs+s.cfg.ArmRetractBuffer)); err == nil {
		s.arm.ResetPosition(0)
	}
}

func (s *Sequencer) escalateStopFailure(err error) {
	if errors.Is(err, protocol.ErrEmergencyStop) {
		s.log("Emergency stop reported by controller")
		s.setState(StateIdle)
		s.requestStop()
		return
	}
	// A chassis that will not stop has no defined recovery.
	s.log("Drive failed to stop, mission halted")
	s.appendEvent("error", 0, 0, "drive stop unacknowledged")
	s.setState(StateError)
	s.requestStop()
}

func (s *Sequencer) settleDuration() time.Duration {
	if s.cfg.SettleWait <= 0 {
		return 0
	}
	return time.Duration(s.cfg.SettleWait * float64(time.Second))
}

// wait sleeps while staying responsive to cancellation. Returns false
// when the mission is being stopped.
func (s *Sequencer) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	case <-t.C:
		return true
	}
}

func (s *Sequencer) appendEvent(kind string, x, y float64, detail string) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(kind, x, y, detail); err != nil {
		s.log("Event log write failed")
	}
}
