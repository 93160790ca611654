package vision

import (
	"math"
	"sort"
)

// Track is one object followed across frames.
type Track struct {
	ID      int
	Det     Detection // latest matched detection
	Sprayed bool
	missing int // consecutive frames without a match
}

// Tracker matches detections frame to frame by bounding-box overlap, so
// a weed that stays in view is one track with one sprayed flag instead
// of a fresh target every frame. Used by the continuous/high-FPS mode;
// the stop-and-spray mission uses positional filtering instead.
type Tracker struct {
	iouThreshold float64
	maxMissing   int
	nextID       int
	tracks       []*Track
}

// NewTracker builds a tracker. Typical values: iouThreshold 0.3,
// maxMissing 15.
func NewTracker(iouThreshold float64, maxMissing int) *Tracker {
	return &Tracker{iouThreshold: iouThreshold, maxMissing: maxMissing, nextID: 1}
}

// Update matches a frame's detections against the live tracks. Unmatched
// detections open new tracks; tracks missed too many frames in a row are
// dropped.
func (t *Tracker) Update(dets []Detection) {
	matched := make([]bool, len(dets))

	for _, tr := range t.tracks {
		best, bestIoU := -1, t.iouThreshold
		for i, d := range dets {
			if matched[i] {
				continue
			}
			if v := iou(tr.Det, d); v >= bestIoU {
				best, bestIoU = i, v
			}
		}
		if best >= 0 {
			tr.Det = dets[best]
			tr.missing = 0
			matched[best] = true
		} else {
			tr.missing++
		}
	}

	for i, d := range dets {
		if !matched[i] {
			t.tracks = append(t.tracks, &Track{ID: t.nextID, Det: d})
			t.nextID++
		}
	}

	live := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.missing <= t.maxMissing {
			live = append(live, tr)
		}
	}
	t.tracks = live
}

// Tracks returns a snapshot of the live tracks.
func (t *Tracker) Tracks() []Track {
	out := make([]Track, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = *tr
	}
	return out
}

// UnsprayedTargets returns live target tracks not yet sprayed and still
// ahead of minX, closest to centerX first.
func (t *Tracker) UnsprayedTargets(centerX, minX float64) []Track {
	var out []Track
	for _, tr := range t.tracks {
		if tr.Sprayed || !tr.Det.IsTarget || tr.Det.X < minX {
			continue
		}
		out = append(out, *tr)
	}
	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].Det.X-centerX) < math.Abs(out[j].Det.X-centerX)
	})
	return out
}

// MarkSprayed flags a track so it is not re-targeted while in view.
func (t *Tracker) MarkSprayed(id int) {
	for _, tr := range t.tracks {
		if tr.ID == id {
			tr.Sprayed = true
			return
		}
	}
}

// Reset drops all tracks.
func (t *Tracker) Reset() {
	t.tracks = nil
}

// iou is intersection over union of two center-sized boxes.
func iou(a, b Detection) float64 {
	ax1, ay1 := a.X-a.W/2, a.Y-a.H/2
	ax2, ay2 := a.X+a.W/2, a.Y+a.H/2
	bx1, by1 := b.X-b.W/2, b.Y-b.H/2
	bx2, by2 := b.X+b.W/2, b.Y+b.H/2

	ix := math.Min(ax2, bx2) - math.Max(ax1, bx1)
	iy := math.Min(ay2, by2) - math.Max(ay1, by1)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.W*a.H + b.W*b.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
