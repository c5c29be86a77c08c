package vision

// Pose landmark indices, matching the 33-point full-body layout emitted by
// the pose model.
const (
	PoseNose          = 0
	PoseLeftEyeInner  = 1
	PoseLeftEye       = 2
	PoseLeftEyeOuter  = 3
	PoseRightEyeInner = 4
	PoseRightEye      = 5
	PoseRightEyeOuter = 6
	PoseLeftEar       = 7
	PoseRightEar      = 8
	PoseMouthLeft     = 9
	PoseMouthRight    = 10
	PoseLeftShoulder  = 11
	PoseRightShoulder = 12
	PoseLeftElbow     = 13
	PoseRightElbow    = 14
	PoseLeftWrist     = 15
	PoseRightWrist    = 16
	PoseLeftPinky     = 17
	PoseRightPinky    = 18
	PoseLeftIndex     = 19
	PoseRightIndex    = 20
	PoseLeftThumb     = 21
	PoseRightThumb    = 22
	PoseLeftHip       = 23
	PoseRightHip      = 24
	PoseLeftKnee      = 25
	PoseRightKnee     = 26
	PoseLeftAnkle     = 27
	PoseRightAnkle    = 28
	PoseLeftHeel      = 29
	PoseRightHeel     = 30
	PoseLeftFoot      = 31
	PoseRightFoot     = 32

	// PoseLandmarkCount is the full pose layout size.
	PoseLandmarkCount = 33
)

// Connection is an edge between two landmark indices.
type Connection struct {
	A, B int
}

// PoseConnections is the fixed skeleton adjacency for the 33-point pose
// layout: face outline, torso, arms, and legs.
var PoseConnections = []Connection{
	{PoseNose, PoseLeftEyeInner}, {PoseLeftEyeInner, PoseLeftEye},
	{PoseLeftEye, PoseLeftEyeOuter}, {PoseLeftEyeOuter, PoseLeftEar},
	{PoseNose, PoseRightEyeInner}, {PoseRightEyeInner, PoseRightEye},
	{PoseRightEye, PoseRightEyeOuter}, {PoseRightEyeOuter, PoseRightEar},
	{PoseMouthLeft, PoseMouthRight},
	{PoseLeftShoulder, PoseRightShoulder},
	{PoseLeftShoulder, PoseLeftElbow}, {PoseLeftElbow, PoseLeftWrist},
	{PoseRightShoulder, PoseRightElbow}, {PoseRightElbow, PoseRightWrist},
	{PoseLeftWrist, PoseLeftPinky}, {PoseLeftWrist, PoseLeftIndex},
	{PoseLeftWrist, PoseLeftThumb}, {PoseLeftPinky, PoseLeftIndex},
	{PoseRightWrist, PoseRightPinky}, {PoseRightWrist, PoseRightIndex},
	{PoseRightWrist, PoseRightThumb}, {PoseRightPinky, PoseRightIndex},
	{PoseLeftShoulder, PoseLeftHip}, {PoseRightShoulder, PoseRightHip},
	{PoseLeftHip, PoseRightHip},
	{PoseLeftHip, PoseLeftKnee}, {PoseLeftKnee, PoseLeftAnkle},
	{PoseRightHip, PoseRightKnee}, {PoseRightKnee, PoseRightAnkle},
	{PoseLeftAnkle, PoseLeftHeel}, {PoseLeftHeel, PoseLeftFoot},
	{PoseLeftAnkle, PoseLeftFoot},
	{PoseRightAnkle, PoseRightHeel}, {PoseRightHeel, PoseRightFoot},
	{PoseRightAnkle, PoseRightFoot},
}

// PoseLabels names the anatomically significant pose indices; only these get
// text labels in the overlay so the skeleton stays readable.
var PoseLabels = map[int]string{
	PoseNose:          "nose",
	PoseLeftShoulder:  "l.shoulder",
	PoseRightShoulder: "r.shoulder",
	PoseLeftElbow:     "l.elbow",
	PoseRightElbow:    "r.elbow",
	PoseLeftWrist:     "l.wrist",
	PoseRightWrist:    "r.wrist",
	PoseLeftHip:       "l.hip",
	PoseRightHip:      "r.hip",
	PoseLeftKnee:      "l.knee",
	PoseRightKnee:     "r.knee",
	PoseLeftAnkle:     "l.ankle",
	PoseRightAnkle:    "r.ankle",
}

// Hand landmark indices for the 21-point hand layout.
const (
	HandWrist            = 0
	HandThumbCMC         = 1
	HandThumbMCP         = 2
	HandThumbIP          = 3
	HandThumbTip         = 4
	HandIndexMCP         = 5
	HandIndexPIP         = 6
	HandIndexDIP         = 7
	HandIndexTip         = 8
	HandMiddleMCP        = 9
	HandMiddlePIP        = 10
	HandMiddleDIP        = 11
	HandMiddleTip        = 12
	HandRingMCP          = 13
	HandRingPIP          = 14
	HandRingDIP          = 15
	HandRingTip          = 16
	HandPinkyMCP         = 17
	HandPinkyPIP         = 18
	HandPinkyDIP         = 19
	HandPinkyTip         = 20
	HandLandmarkCount    = 21
)

// HandConnections is the fixed topology over the 21-point hand layout:
// palm ring plus one chain per finger.
var HandConnections = []Connection{
	{HandWrist, HandThumbCMC}, {HandThumbCMC, HandThumbMCP},
	{HandThumbMCP, HandThumbIP}, {HandThumbIP, HandThumbTip},
	{HandWrist, HandIndexMCP}, {HandIndexMCP, HandIndexPIP},
	{HandIndexPIP, HandIndexDIP}, {HandIndexDIP, HandIndexTip},
	{HandIndexMCP, HandMiddleMCP}, {HandMiddleMCP, HandMiddlePIP},
	{HandMiddlePIP, HandMiddleDIP}, {HandMiddleDIP, HandMiddleTip},
	{HandMiddleMCP, HandRingMCP}, {HandRingMCP, HandRingPIP},
	{HandRingPIP, HandRingDIP}, {HandRingDIP, HandRingTip},
	{HandRingMCP, HandPinkyMCP}, {HandWrist, HandPinkyMCP},
	{HandPinkyMCP, HandPinkyPIP}, {HandPinkyPIP, HandPinkyDIP},
	{HandPinkyDIP, HandPinkyTip},
}

// HandFingertips are the indices labeled in the overlay.
var HandFingertips = []int{HandThumbTip, HandIndexTip, HandMiddleTip, HandRingTip, HandPinkyTip}

// FaceOvalConnections traces the outer face contour over the 468-point face
// mesh layout. Drawn only when the face model emits the full mesh.
var FaceOvalConnections = []Connection{
	{10, 338}, {338, 297}, {297, 332}, {332, 284}, {284, 251}, {251, 389},
	{389, 356}, {356, 454}, {454, 323}, {323, 361}, {361, 288}, {288, 397},
	{397, 365}, {365, 379}, {379, 378}, {378, 400}, {400, 377}, {377, 152},
	{152, 148}, {148, 176}, {176, 149}, {149, 150}, {150, 136}, {136, 172},
	{172, 58}, {58, 132}, {132, 93}, {93, 234}, {234, 127}, {127, 162},
	{162, 21}, {21, 54}, {54, 103}, {103, 67}, {67, 109}, {109, 10},
}

// FaceLandmarkCount is the full face mesh layout size.
const FaceLandmarkCount = 468
