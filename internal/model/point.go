package model

// Coords is a latitude/longitude pair in decimal degrees
type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Candidate is a tentative extraction result. HasTS is false until a
// timestamp has been resolved from the node itself or an ancestor.
type Candidate struct {
	Coords
	TS    int64 `json:"ts,omitempty"`
	HasTS bool  `json:"-"`
}

// Point is a resolved, validated location sample. TS is always > 0.
type Point struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	TS   int64   `json:"ts"`   // Unix epoch milliseconds
	Year int     `json:"year"` // Calendar year of TS in the configured location
}
