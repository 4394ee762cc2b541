package model

// BBox is a token bounding box in image pixel coordinates, origin top-left.
type BBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Token is a single recognized word with its engine confidence in [0,1].
type Token struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// RawResult is the immutable output of one extraction call: the full text,
// the surviving tokens in reading order, and the overall confidence computed
// as the mean of surviving token confidences.
type RawResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Tokens     []Token `json:"tokens"`
}
