package models

// Frame holds a single captured video frame with its metadata.
// Image bytes travel through the channel but are never exported; Detection
// is only populated by sources that replay landmarks recorded upstream.
type Frame struct {
	Seq         uint64     `json:"seq"`
	TimestampNs int64      `json:"timestamp_ns"` // nanosecond-precision capture time
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	Format      string     `json:"format,omitempty"` // MJPEG, RAW, PNG …
	Image       []byte     `json:"-"`
	Detection   *Detection `json:"detection,omitempty"`
}

// Detection is the landmark set an extractor found in one frame.
// A nil *Detection means the extractor found nobody.
type Detection struct {
	Keypoints Keypoints `json:"keypoints"`
}

// Empty reports whether the detection carries no keypoints at all.
func (d *Detection) Empty() bool {
	return d == nil || len(d.Keypoints) == 0
}
