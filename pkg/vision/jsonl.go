package vision

import (
	"bufio"
	"encoding/json"
	"io"
)

// frame is one line of the detector stream.
type frame struct {
	Detections []Detection `json:"detections"`
}

// JSONLSource adapts the external detector process to Source. The
// detector writes one JSON object per frame on its stdout, for example:
//
//	{"detections":[{"x":320,"y":240,"w":40,"h":40,"confidence":0.9,"class":"weed"}]}
//
// A malformed line counts as a failed frame, not a fatal error, matching
// the transient-failure contract of Source.
type JSONLSource struct {
	sc      *bufio.Scanner
	classes *ClassSet
}

// NewJSONLSource reads frames from r. When classes is non-nil, each
// frame's IsTarget flags are derived from it; otherwise the flags are
// taken as sent.
func NewJSONLSource(r io.Reader, classes *ClassSet) *JSONLSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &JSONLSource{sc: sc, classes: classes}
}

func (s *JSONLSource) Next() ([]Detection, bool) {
	if !s.sc.Scan() {
		return nil, false
	}
	var f frame
	if err := json.Unmarshal(s.sc.Bytes(), &f); err != nil {
		return nil, false
	}
	if s.classes != nil {
		return s.classes.Apply(f.Detections), true
	}
	return f.Detections, true
}
