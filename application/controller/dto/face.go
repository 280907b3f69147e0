package dto

// EnrollFaceDTO carries an enrollment request. Video is an optional
// base64-encoded clip (raw or data URL); VideoPath is set by the router
// when the clip arrived as a multipart upload. When both are absent the
// capture device is opened instead.
type EnrollFaceDTO struct {
	Username  string `json:"username" validate:"required,username"`
	Video     string `json:"video,omitempty"`
	VideoPath string `json:"-"`
	Device    int    `json:"device,omitempty"`
}

// VerifyFaceDTO carries a verification request for a claimed username.
type VerifyFaceDTO struct {
	Username  string `json:"username" validate:"required,username"`
	Video     string `json:"video,omitempty"`
	VideoPath string `json:"-"`
	Device    int    `json:"device,omitempty"`
}
