package controller

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os"

	apperrors "facegate.humanid.io/application/appErrors"
	"facegate.humanid.io/application/controller/dto"
	"facegate.humanid.io/application/interfaces"
	"facegate.humanid.io/application/utils"
	"facegate.humanid.io/infrastructure/biometric"
	"facegate.humanid.io/infrastructure/enrollment"
	"facegate.humanid.io/infrastructure/ratelimit"
	server_response "facegate.humanid.io/infrastructure/serverResponse"
	"facegate.humanid.io/infrastructure/validator"
	"github.com/gin-gonic/gin"
)

// EnrollFace registers a new identity from a video clip or a live capture.
func EnrollFace(ctx *interfaces.ApplicationContext[dto.EnrollFaceDTO]) {
	validationErr := validator.ValidatorInstance.ValidateStruct(ctx.Body)
	if validationErr != nil {
		apperrors.ValidationFailedError(ctx.Ctx, validationErr)
		return
	}

	source, cleanup, err := openFrameSource(ctx.Body.Video, ctx.Body.VideoPath, ctx.Body.Device)
	if err != nil {
		respondSourceError(ctx.Ctx, err)
		return
	}
	defer cleanup()

	result, err := biometric.FaceGate.Enroll(ctx.Ctx.Request.Context(), ctx.Body.Username, source)
	if err != nil {
		respondPipelineError(ctx.Ctx, err)
		return
	}
	server_response.Responder.Respond(ctx.Ctx, http.StatusCreated, "face enrolled", result, nil, nil)
}

// VerifyFace checks a capture against the claimed username's enrollment.
func VerifyFace(ctx *interfaces.ApplicationContext[dto.VerifyFaceDTO]) {
	validationErr := validator.ValidatorInstance.ValidateStruct(ctx.Body)
	if validationErr != nil {
		apperrors.ValidationFailedError(ctx.Ctx, validationErr)
		return
	}

	source, cleanup, err := openFrameSource(ctx.Body.Video, ctx.Body.VideoPath, ctx.Body.Device)
	if err != nil {
		respondSourceError(ctx.Ctx, err)
		return
	}
	defer cleanup()

	result, err := biometric.FaceGate.Verify(ctx.Ctx.Request.Context(), ctx.Body.Username, source)
	if err != nil {
		respondPipelineError(ctx.Ctx, err)
		return
	}
	if !result.IsMatch {
		apperrors.AuthenticationError(ctx.Ctx, "face did not match enrolled identity")
		return
	}
	server_response.Responder.Respond(ctx.Ctx, http.StatusOK, "face verified", result, nil, nil)
}

// DeleteFace removes an identity's enrollment record.
func DeleteFace(ctx *interfaces.ApplicationContext[any]) {
	username := ctx.Ctx.Param("username")
	if err := validator.ValidatorInstance.ValidateValue(username, "required,username"); err != nil {
		apperrors.ValidationFailedError(ctx.Ctx, &[]error{err})
		return
	}
	if err := biometric.FaceGate.Delete(username); err != nil {
		respondPipelineError(ctx.Ctx, err)
		return
	}
	server_response.Responder.Respond(ctx.Ctx, http.StatusOK, "face enrollment deleted", nil, nil, nil)
}

// ListFaces returns all enrolled usernames.
func ListFaces(ctx *interfaces.ApplicationContext[any]) {
	usernames, err := biometric.FaceGate.List()
	if err != nil {
		respondPipelineError(ctx.Ctx, err)
		return
	}
	server_response.Responder.Respond(ctx.Ctx, http.StatusOK, "enrolled identities", map[string]any{
		"usernames": usernames,
		"count":     len(usernames),
	}, nil, nil)
}

// openFrameSource resolves the request into a frame source: a temp file
// backed video source when a clip was uploaded (multipart or base64), the
// capture device otherwise. cleanup releases the source and any temp file
// on every path.
func openFrameSource(video, videoPath string, device int) (biometric.FrameSource, func(), error) {
	if videoPath != "" {
		source, err := biometric.NewVideoSource(videoPath)
		if err != nil {
			os.Remove(videoPath)
			return nil, nil, err
		}
		return source, func() {
			source.Close()
			os.Remove(videoPath)
		}, nil
	}
	if video != "" {
		path, err := utils.DecodeBase64Video(video)
		if err != nil {
			return nil, nil, err
		}
		source, err := biometric.NewVideoSource(path)
		if err != nil {
			os.Remove(path)
			return nil, nil, err
		}
		return source, func() {
			source.Close()
			os.Remove(path)
		}, nil
	}
	source, err := biometric.NewCameraSource(device)
	if err != nil {
		return nil, nil, err
	}
	return source, func() { source.Close() }, nil
}

// respondSourceError distinguishes a payload the client got wrong from a
// capture device the server cannot open.
func respondSourceError(ctx *gin.Context, err error) {
	if errors.Is(err, biometric.ErrSourceUnavailable) {
		apperrors.SourceUnavailableError(ctx, err)
		return
	}
	apperrors.ClientError(ctx, "invalid video payload", []error{err})
}

func respondPipelineError(ctx *gin.Context, err error) {
	var locked *ratelimit.AccountLockedError
	switch {
	case errors.As(err, &locked):
		apperrors.AccountLockedError(ctx, int(math.Ceil(locked.RetryAfter.Seconds())))
	case errors.Is(err, enrollment.ErrAlreadyRegistered):
		apperrors.EntityAlreadyExistsError(ctx, "username already enrolled")
	case errors.Is(err, biometric.ErrNotRegistered), errors.Is(err, enrollment.ErrNotFound):
		apperrors.NotFoundError(ctx, "username not enrolled")
	case errors.Is(err, biometric.ErrNoFaceDetected),
		errors.Is(err, biometric.ErrInsufficientSamples):
		apperrors.ClientError(ctx, err.Error(), nil)
	case errors.Is(err, biometric.ErrSourceUnavailable):
		apperrors.SourceUnavailableError(ctx, err)
	case errors.Is(err, context.Canceled):
		apperrors.ClientError(ctx, "capture cancelled", nil)
	default:
		apperrors.FatalServerError(ctx, err)
	}
}
