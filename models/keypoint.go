package models

// Landmark names an anatomical point. Values follow the MediaPipe pose
// landmark names in snake_case.
type Landmark string

const (
	Nose           Landmark = "nose"
	LeftEyeInner   Landmark = "left_eye_inner"
	LeftEye        Landmark = "left_eye"
	LeftEyeOuter   Landmark = "left_eye_outer"
	RightEyeInner  Landmark = "right_eye_inner"
	RightEye       Landmark = "right_eye"
	RightEyeOuter  Landmark = "right_eye_outer"
	LeftEar        Landmark = "left_ear"
	RightEar       Landmark = "right_ear"
	MouthLeft      Landmark = "mouth_left"
	MouthRight     Landmark = "mouth_right"
	LeftShoulder   Landmark = "left_shoulder"
	RightShoulder  Landmark = "right_shoulder"
	LeftElbow      Landmark = "left_elbow"
	RightElbow     Landmark = "right_elbow"
	LeftWrist      Landmark = "left_wrist"
	RightWrist     Landmark = "right_wrist"
	LeftPinky      Landmark = "left_pinky"
	RightPinky     Landmark = "right_pinky"
	LeftIndex      Landmark = "left_index"
	RightIndex     Landmark = "right_index"
	LeftThumb      Landmark = "left_thumb"
	RightThumb     Landmark = "right_thumb"
	LeftHip        Landmark = "left_hip"
	RightHip       Landmark = "right_hip"
	LeftKnee       Landmark = "left_knee"
	RightKnee      Landmark = "right_knee"
	LeftAnkle      Landmark = "left_ankle"
	RightAnkle     Landmark = "right_ankle"
	LeftHeel       Landmark = "left_heel"
	RightHeel      Landmark = "right_heel"
	LeftFootIndex  Landmark = "left_foot_index"
	RightFootIndex Landmark = "right_foot_index"
)

// PoseLandmarks lists the landmarks in MediaPipe index order, so that an
// index-based detector output can be mapped to names.
var PoseLandmarks = [...]Landmark{
	Nose,
	LeftEyeInner, LeftEye, LeftEyeOuter,
	RightEyeInner, RightEye, RightEyeOuter,
	LeftEar, RightEar,
	MouthLeft, MouthRight,
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
	LeftPinky, RightPinky,
	LeftIndex, RightIndex,
	LeftThumb, RightThumb,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
	LeftHeel, RightHeel,
	LeftFootIndex, RightFootIndex,
}

// Valid reports whether l is one of the known pose landmarks.
func (l Landmark) Valid() bool {
	for _, p := range PoseLandmarks {
		if p == l {
			return true
		}
	}
	return false
}

// Keypoint is one detected landmark. X and Y are normalized to the frame
// (0..1, origin top-left).
type Keypoint struct {
	Name       Landmark `json:"name"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Confidence float64  `json:"confidence"`
}

// Pixel returns the keypoint position in pixel space for a w×h frame.
func (k Keypoint) Pixel(w, h int) (float64, float64) {
	return k.X * float64(w), k.Y * float64(h)
}

// Keypoints is the per-frame landmark set, keyed by name.
type Keypoints map[Landmark]Keypoint

// NewKeypoints indexes a slice of keypoints by name. Later duplicates win.
func NewKeypoints(kps ...Keypoint) Keypoints {
	out := make(Keypoints, len(kps))
	for _, k := range kps {
		out[k.Name] = k
	}
	return out
}
