package vision

import (
	"sort"
	"sync"
)

// ClassSet is the runtime-adjustable set of class labels that count as
// spray targets, plus the confidence floor. An operator layer may mutate
// it while a mission runs, so it is mutex guarded; the mission core only
// ever sees the resulting IsTarget flags.
type ClassSet struct {
	mu            sync.RWMutex
	classes       map[string]struct{}
	minConfidence float64
}

// NewClassSet builds a set with the given confidence floor and initial
// target classes.
func NewClassSet(minConfidence float64, classes ...string) *ClassSet {
	s := &ClassSet{
		classes:       make(map[string]struct{}, len(classes)),
		minConfidence: minConfidence,
	}
	for _, c := range classes {
		s.classes[c] = struct{}{}
	}
	return s
}

// Add marks a class label as a spray target.
func (s *ClassSet) Add(class string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[class] = struct{}{}
}

// Remove drops a class label from the target set.
func (s *ClassSet) Remove(class string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.classes, class)
}

// List returns the target classes, sorted.
func (s *ClassSet) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.classes))
	for c := range s.classes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// SetMinConfidence adjusts the confidence floor.
func (s *ClassSet) SetMinConfidence(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minConfidence = v
}

// IsTarget reports whether a detection counts as a spray target.
func (s *ClassSet) IsTarget(d Detection) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d.Confidence < s.minConfidence {
		return false
	}
	_, ok := s.classes[d.Class]
	return ok
}

// Apply returns the detections with their IsTarget flags set from this
// set's current contents.
func (s *ClassSet) Apply(dets []Detection) []Detection {
	out := make([]Detection, len(dets))
	for i, d := range dets {
		d.IsTarget = s.IsTarget(d)
		out[i] = d
	}
	return out
}
