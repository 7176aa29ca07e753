package types

import "time"

// Box represents a normalized crop rectangle with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Category is a single label/confidence pair emitted by a classifier
type Category struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classification contains the categories produced by one inference call.
// Categories are in the order the model returned them, not sorted.
type Classification struct {
	Categories    []Category    `json:"categories"`
	InferenceTime time.Duration `json:"inference_time"`
	Model         string        `json:"model"`
}

// Handoff is the value passed from an analysis session to the result view.
// ImageRef is passed through untouched from the point of selection.
type Handoff struct {
	ImageRef string `json:"extra_image"`
	Report   string `json:"extra_result"`
}

// ProcessingOptions contains options for preparing an image for the model
type ProcessingOptions struct {
	CacheDir    string
	SendFormat  string
	SendSize    int
	SendQuality int
	MinSize     int
}
