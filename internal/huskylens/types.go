package huskylens

import (
	"fmt"
	"math"
	"strings"
)

// Algorithm selects the recognition mode running on the device.
type Algorithm uint8

const (
	FaceRecognition      Algorithm = 0x00
	ObjectTracking       Algorithm = 0x01
	ObjectRecognition    Algorithm = 0x02
	LineTracking         Algorithm = 0x03
	ColorRecognition     Algorithm = 0x04
	TagRecognition       Algorithm = 0x05
	ObjectClassification Algorithm = 0x06
)

var algorithmNames = []string{
	FaceRecognition:      "face-recognition",
	ObjectTracking:       "object-tracking",
	ObjectRecognition:    "object-recognition",
	LineTracking:         "line-tracking",
	ColorRecognition:     "color-recognition",
	TagRecognition:       "tag-recognition",
	ObjectClassification: "object-classification",
}

// Algorithms returns every supported algorithm in code order.
func Algorithms() []Algorithm {
	out := make([]Algorithm, len(algorithmNames))
	for i := range algorithmNames {
		out[i] = Algorithm(i)
	}
	return out
}

func (a Algorithm) String() string {
	if int(a) < len(algorithmNames) {
		return algorithmNames[a]
	}
	return fmt.Sprintf("algorithm(%d)", uint8(a))
}

// Valid reports whether a is one of the device's algorithms.
func (a Algorithm) Valid() bool {
	return int(a) < len(algorithmNames)
}

// ParseAlgorithm accepts the names returned by String, with or without the
// "-recognition" suffix ("face", "tag"), in any case.
func ParseAlgorithm(name string) (Algorithm, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "_", "-")
	for i, full := range algorithmNames {
		if n == full || n+"-recognition" == full {
			return Algorithm(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidArgument, name)
}

// Block is a rectangular detection. X and Y are the centre of the box.
type Block struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
	ID     int `json:"id"`
}

// Learned reports whether the block matches a learned object.
func (b Block) Learned() bool {
	return b.ID > 0
}

// Arrow is a directional line segment, as reported by line tracking.
type Arrow struct {
	XTail int `json:"x_tail"`
	YTail int `json:"y_tail"`
	XHead int `json:"x_head"`
	YHead int `json:"y_head"`
	ID    int `json:"id"`
}

// Learned reports whether the arrow matches a learned object.
func (a Arrow) Learned() bool {
	return a.ID > 0
}

// Angle returns the direction from tail to head in degrees, in (-180, 180].
func (a Arrow) Angle() float64 {
	return math.Atan2(float64(a.YHead-a.YTail), float64(a.XHead-a.XTail)) * 180 / math.Pi
}

// Length returns the distance from tail to head in pixels.
func (a Arrow) Length() float64 {
	return math.Hypot(float64(a.XHead-a.XTail), float64(a.YHead-a.YTail))
}
