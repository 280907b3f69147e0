package biometric

import (
	"math"
	"time"

	"facegate.humanid.io/infrastructure/biometric/types"
	"gocv.io/x/gocv"
)

const (
	blinkOpennessThreshold = 0.25
	blinkRecency           = 2 * time.Second
	textureHistorySize     = 10
	staticTextureVariance  = 0.01
	richTextureThreshold   = 0.15
	livenessPassScore      = 0.7
)

// AntiSpoofGate accumulates liveness evidence over the frames of one
// capture session: blink events derived from the eye landmarks, and the
// temporal variance of an LBP texture measure. Replayed static images show
// neither. This is a best-effort heuristic, not a defense against serious
// presentation attacks; treat a pass as weak evidence only.
//
// Not safe for concurrent use; create one gate per capture session.
type AntiSpoofGate struct {
	textureHistory []float64
	blinkState     bool
	lastBlink      time.Time
	now            func() time.Time
}

func NewAntiSpoofGate() *AntiSpoofGate {
	return &AntiSpoofGate{now: time.Now}
}

// EyeOpenness approximates an eye aspect ratio from the two eye centers:
// the vertical spread of the eye line against its horizontal spread. With
// only 2-point landmarks a true 6-point EAR is not computable; a dip below
// the blink threshold still correlates with eyelid closure well enough to
// register blink events.
func EyeOpenness(lm types.Landmarks) float64 {
	dx := math.Abs(float64(lm.LeftEye.X - lm.RightEye.X))
	dy := math.Abs(float64(lm.LeftEye.Y - lm.RightEye.Y))
	if dx == 0 {
		return 0
	}
	return dy / dx
}

// Observe folds one frame into the gate's running state.
func (g *AntiSpoofGate) Observe(frame gocv.Mat, det types.Detection) {
	texture := lbpHistogramVariance(frame)
	g.textureHistory = append(g.textureHistory, texture)
	if len(g.textureHistory) > textureHistorySize {
		g.textureHistory = g.textureHistory[1:]
	}

	blink := EyeOpenness(det.Landmarks) < blinkOpennessThreshold
	if blink && !g.blinkState {
		g.blinkState = true
		g.lastBlink = g.now()
	} else if !blink && g.blinkState {
		g.blinkState = false
	}
}

// Score combines the evidence with fixed weights: temporal texture
// variation (0.4), a blink within the last two seconds (0.3), and texture
// richness of the latest frame (0.3).
func (g *AntiSpoofGate) Score() float64 {
	score := 0.0
	if variance(g.textureHistory) >= staticTextureVariance {
		score += 0.4
	}
	if !g.lastBlink.IsZero() && g.now().Sub(g.lastBlink) < blinkRecency {
		score += 0.3
	}
	if len(g.textureHistory) > 0 && g.textureHistory[len(g.textureHistory)-1] > richTextureThreshold {
		score += 0.3
	}
	return score
}

// Pass reports whether the accumulated evidence clears the liveness
// threshold.
func (g *AntiSpoofGate) Pass() bool {
	return g.Score() > livenessPassScore
}

// lbpHistogramVariance computes an 8-neighbor local binary pattern over the
// grayscale frame (sampling every 2nd pixel) and returns the variance of
// the normalized 256-bin pattern histogram.
func lbpHistogramVariance(frame gocv.Mat) float64 {
	gray := grayscale(frame)
	defer gray.Close()

	rows := gray.Rows()
	cols := gray.Cols()
	if rows < 3 || cols < 3 {
		return 0
	}

	histogram := make([]float64, 256)
	total := 0
	sampleStep := 2

	neighbors := []struct{ dy, dx int }{
		{-1, -1}, {-1, 0}, {-1, 1},
		{0, 1}, {1, 1}, {1, 0},
		{1, -1}, {0, -1},
	}

	for i := sampleStep; i < rows-sampleStep; i += sampleStep {
		for j := sampleStep; j < cols-sampleStep; j += sampleStep {
			center := gray.GetUCharAt(i, j)
			var pattern uint8
			for bit, n := range neighbors {
				if gray.GetUCharAt(i+n.dy, j+n.dx) >= center {
					pattern |= 1 << uint(bit)
				}
			}
			histogram[pattern]++
			total++
		}
	}
	if total == 0 {
		return 0
	}
	for k := range histogram {
		histogram[k] /= float64(total)
	}
	return variance(histogram)
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}
