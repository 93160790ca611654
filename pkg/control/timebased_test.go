package control

import (
	"math"
	"testing"
)

func testTimeBased() *TimeBased {
	return NewTimeBased(TimeBasedConfig{
		Speed:           10.0,
		AccelTime:       0.1,
		OvershootFactor: 1.1,
		MinMoveTime:     0.05,
	})
}

func TestTimeBased_MoveTime(t *testing.T) {
	tb := testTimeBased()

	// (20/10 + 0.1) * 1.1 * 1.0 = 2.31
	got := tb.MoveTime(20)
	if math.Abs(got-2.31) > 0.001 {
		t.Errorf("MoveTime(20) = %f, want 2.31", got)
	}
}

func TestTimeBased_DeadZone(t *testing.T) {
	tb := testTimeBased()
	if got := tb.MoveTime(0.05); got != 0 {
		t.Errorf("MoveTime inside dead zone = %f, want 0", got)
	}
	if m := tb.Plan(0.05); m.Direction != None || m.Seconds != 0 {
		t.Errorf("Plan inside dead zone = %+v, want no move", m)
	}
}

func TestTimeBased_Direction(t *testing.T) {
	tb := testTimeBased()
	tb.ResetPosition(10)

	if m := tb.Plan(15); m.Direction != Out {
		t.Errorf("Plan(15) from 10: direction = %v, want out", m.Direction)
	}
	if m := tb.Plan(5); m.Direction != In {
		t.Errorf("Plan(5) from 10: direction = %v, want in", m.Direction)
	}
	// Same distance either way costs the same time.
	if out, in := tb.MoveTime(15), tb.MoveTime(5); math.Abs(out-in) > 1e-9 {
		t.Errorf("symmetric moves differ: out=%f in=%f", out, in)
	}
}

func TestTimeBased_MinMoveTimeFloor(t *testing.T) {
	tb := NewTimeBased(TimeBasedConfig{Speed: 1000, MinMoveTime: 0.5})
	if got := tb.MoveTime(0.2); got != 0.5 {
		t.Errorf("MoveTime = %f, want floored at 0.5", got)
	}
}

func TestTimeBased_Advance(t *testing.T) {
	tb := testTimeBased()
	tb.Advance(12.5)
	if tb.Position() != 12.5 {
		t.Errorf("Position after Advance = %f, want 12.5", tb.Position())
	}
	// Planning the same target again is a no-op.
	if m := tb.Plan(12.5); m.Direction != None {
		t.Errorf("Plan at believed position = %+v, want no move", m)
	}
}

func TestTimeBased_CalibrateSmoothing(t *testing.T) {
	tb := testTimeBased()

	// One sample at actual/expected = 0.5 moves the factor partway,
	// not all the way.
	tb.Calibrate(5, 10)
	want := 0.7*1.0 + 0.3*0.5
	if math.Abs(tb.CalibrationFactor()-want) > 1e-9 {
		t.Errorf("factor after one sample = %f, want %f", tb.CalibrationFactor(), want)
	}

	// Repeated identical samples converge toward the ratio.
	for i := 0; i < 50; i++ {
		tb.Calibrate(5, 10)
	}
	if math.Abs(tb.CalibrationFactor()-0.5) > 0.001 {
		t.Errorf("factor should converge to 0.5, got %f", tb.CalibrationFactor())
	}
}

func TestTimeBased_CalibrateIgnoresBadSamples(t *testing.T) {
	tb := testTimeBased()
	tb.Calibrate(0, 10)
	tb.Calibrate(5, 0)
	tb.Calibrate(-1, -1)
	if tb.CalibrationFactor() != 1.0 {
		t.Errorf("factor = %f, want unchanged 1.0", tb.CalibrationFactor())
	}
}

func TestTimeBased_CalibrationAffectsMoveTime(t *testing.T) {
	tb := testTimeBased()
	base := tb.MoveTime(20)
	tb.Calibrate(12, 10) // moved further than expected
	if tb.MoveTime(20) <= base {
		t.Errorf("factor > 1 should lengthen moves: %f vs %f", tb.MoveTime(20), base)
	}
}
