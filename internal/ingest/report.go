package ingest

// SegmentResult records the outcome of embedding and storing one segment.
// A nil Err means the segment's vector record was written.
type SegmentResult struct {
	SegmentID int64
	Position  int
	VectorKey string
	Err       error
}

// OK reports whether the segment completed.
func (r SegmentResult) OK() bool {
	return r.Err == nil
}

// BatchReport aggregates per-segment outcomes for one ingestion call. The
// driver inspects the report instead of unwinding on the first failure, so one
// bad segment never aborts the rest of the document.
type BatchReport struct {
	Results []SegmentResult
}

func (r *BatchReport) add(res SegmentResult) {
	r.Results = append(r.Results, res)
}

// Succeeded counts completed segments.
func (r *BatchReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Failed counts segments that did not complete.
func (r *BatchReport) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// FirstError returns the first recorded failure, or nil.
func (r *BatchReport) FirstError() error {
	for _, res := range r.Results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}
