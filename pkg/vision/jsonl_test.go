package vision

import (
	"strings"
	"testing"
)

func TestJSONLSource(t *testing.T) {
	input := strings.Join([]string{
		`{"detections":[{"x":320,"y":240,"w":40,"h":40,"confidence":0.9,"class":"weed"}]}`,
		`not json`,
		`{"detections":[]}`,
	}, "\n")

	src := NewJSONLSource(strings.NewReader(input), NewClassSet(0.5, "weed"))

	dets, ok := src.Next()
	if !ok || len(dets) != 1 {
		t.Fatalf("first frame = %v, %v", dets, ok)
	}
	if !dets[0].IsTarget {
		t.Error("weed at 0.9 should be flagged as target by the class set")
	}

	if _, ok := src.Next(); ok {
		t.Error("malformed line should read as a failed frame")
	}

	dets, ok = src.Next()
	if !ok || len(dets) != 0 {
		t.Errorf("empty frame = %v, %v; want ok with no detections", dets, ok)
	}

	if _, ok := src.Next(); ok {
		t.Error("exhausted stream should read as failed frames")
	}
}
