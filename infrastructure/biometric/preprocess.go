package biometric

import (
	"image"
	"math"

	"facegate.humanid.io/infrastructure/biometric/types"
	"gocv.io/x/gocv"
)

// Enhance normalizes lighting before detection: CLAHE (clip 2.0, 8x8 tiles)
// applied to the luminance channel of the Lab representation, followed by a
// 5x5 Gaussian blur to suppress sensor noise. Deterministic for identical
// input bytes. The caller owns the returned Mat.
func Enhance(frame gocv.Mat) gocv.Mat {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(frame, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	clahe := gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8))
	defer clahe.Close()
	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe.Apply(channels[0], &equalized)

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge([]gocv.Mat{equalized, channels[1], channels[2]}, &merged)

	enhanced := gocv.NewMat()
	defer enhanced.Close()
	gocv.CvtColor(merged, &enhanced, gocv.ColorLabToBGR)

	blurred := gocv.NewMat()
	gocv.GaussianBlur(enhanced, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
	return blurred
}

// EyeAngle is the in-plane rotation of the eye line relative to horizontal,
// in degrees.
func EyeAngle(lm types.Landmarks) float64 {
	dy := float64(lm.LeftEye.Y - lm.RightEye.Y)
	dx := float64(lm.LeftEye.X - lm.RightEye.X)
	return math.Atan2(dy, dx) * 180 / math.Pi
}

// Align rotates the whole frame about the eye midpoint so the eye line
// becomes horizontal, normalizing in-plane head tilt before cropping. The
// caller owns the returned Mat.
func Align(frame gocv.Mat, lm types.Landmarks) gocv.Mat {
	center := image.Pt(
		(lm.LeftEye.X+lm.RightEye.X)/2,
		(lm.LeftEye.Y+lm.RightEye.Y)/2,
	)
	rotation := gocv.GetRotationMatrix2D(center, EyeAngle(lm), 1.0)
	defer rotation.Close()

	aligned := gocv.NewMat()
	gocv.WarpAffine(frame, &aligned, rotation, image.Pt(frame.Cols(), frame.Rows()))
	return aligned
}

// CropFace extracts the detection box from an aligned frame, clamped to the
// frame bounds. size > 0 resizes the crop to the canonical square patch.
// Returns an empty Mat when the clamped box has no area.
func CropFace(aligned gocv.Mat, box image.Rectangle, size int) gocv.Mat {
	bounds := image.Rect(0, 0, aligned.Cols(), aligned.Rows())
	box = box.Intersect(bounds)
	if box.Dx() <= 0 || box.Dy() <= 0 {
		return gocv.NewMat()
	}

	region := aligned.Region(box)
	defer region.Close()
	face := region.Clone()
	if size <= 0 {
		return face
	}

	resized := gocv.NewMat()
	gocv.Resize(face, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)
	face.Close()
	return resized
}

// augmentationsPerSample is how many embeddings one accepted frame yields
// on the projection-fit path: the patch itself, its mirror, and two
// gamma-shifted variants. With pose separation capping distinct yaws at
// roughly 2*MaxRegistrationYaw/MinPoseSeparation, the doubled sample target
// is only reachable because each pose contributes this many samples.
const augmentationsPerSample = 4

// augmentFace derives the mirror and gamma 0.8/1.2 variants of a face
// patch, widening the sample spread the projection fit sees without
// demanding more distinct head poses. The caller closes the returned Mats.
func augmentFace(face gocv.Mat) []gocv.Mat {
	flipped := gocv.NewMat()
	gocv.Flip(face, &flipped, 1)
	return []gocv.Mat{flipped, gammaAdjust(face, 0.8), gammaAdjust(face, 1.2)}
}

// gammaAdjust applies gamma correction through a lookup table, the standard
// 8-bit recipe.
func gammaAdjust(img gocv.Mat, gamma float64) gocv.Mat {
	lut := gocv.NewMatWithSize(1, 256, gocv.MatTypeCV8U)
	defer lut.Close()
	inv := 1.0 / gamma
	for i := 0; i < 256; i++ {
		lut.SetUCharAt(0, i, uint8(math.Round(math.Pow(float64(i)/255.0, inv)*255.0)))
	}
	out := gocv.NewMat()
	gocv.LUT(img, lut, &out)
	return out
}

func grayscale(img gocv.Mat) gocv.Mat {
	if img.Channels() == 1 {
		return img.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	return gray
}

// Sharpness estimates focus as the variance of the Laplacian over the
// grayscale image. Blurry frames score low.
func Sharpness(img gocv.Mat) float64 {
	gray := grayscale(img)
	defer gray.Close()

	laplacian := gocv.NewMat()
	defer laplacian.Close()
	gocv.Laplacian(gray, &laplacian, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	stddev := gocv.NewMat()
	defer mean.Close()
	defer stddev.Close()
	gocv.MeanStdDev(laplacian, &mean, &stddev)
	sd := stddev.GetDoubleAt(0, 0)
	return sd * sd
}

// Contrast estimates global contrast as the standard deviation of gray
// levels.
func Contrast(img gocv.Mat) float64 {
	gray := grayscale(img)
	defer gray.Close()
	mean := gocv.NewMat()
	stddev := gocv.NewMat()
	defer mean.Close()
	defer stddev.Close()
	gocv.MeanStdDev(gray, &mean, &stddev)
	return stddev.GetDoubleAt(0, 0)
}

// FaceQuality combines sharpness and contrast into the score the enrollment
// quality gate thresholds against.
func FaceQuality(face gocv.Mat) float64 {
	return Sharpness(face)*0.6 + Contrast(face)*0.4
}

// EstimateYaw approximates horizontal head rotation in degrees from the
// offset of the nose tip against the eye midline. 0 is frontal; the sign
// follows the direction the nose points.
func EstimateYaw(lm types.Landmarks) float64 {
	eyeMidX := float64(lm.LeftEye.X+lm.RightEye.X) / 2
	eyeMidY := float64(lm.LeftEye.Y+lm.RightEye.Y) / 2
	return math.Atan2(
		float64(lm.Nose.X)-eyeMidX,
		float64(lm.Nose.Y)-eyeMidY,
	) * 180 / math.Pi
}
