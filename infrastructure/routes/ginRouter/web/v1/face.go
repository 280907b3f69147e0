package routev1

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "facegate.humanid.io/application/appErrors"
	"facegate.humanid.io/application/controller"
	"facegate.humanid.io/application/controller/dto"
	"facegate.humanid.io/application/interfaces"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func FaceRouter(router *gin.RouterGroup) {
	faceRouter := router.Group("/face")
	{
		faceRouter.POST("/enroll", func(ctx *gin.Context) {
			appContext := ctx.MustGet("AppContext").(*interfaces.ApplicationContext[any])
			var body dto.EnrollFaceDTO
			if !bindCaptureRequest(ctx, &body.Username, &body.Video, &body.VideoPath, &body.Device) {
				return
			}
			controller.EnrollFace(&interfaces.ApplicationContext[dto.EnrollFaceDTO]{
				Ctx:      ctx,
				Body:     &body,
				DeviceID: appContext.DeviceID,
			})
		})

		faceRouter.POST("/verify", func(ctx *gin.Context) {
			appContext := ctx.MustGet("AppContext").(*interfaces.ApplicationContext[any])
			var body dto.VerifyFaceDTO
			if !bindCaptureRequest(ctx, &body.Username, &body.Video, &body.VideoPath, &body.Device) {
				return
			}
			controller.VerifyFace(&interfaces.ApplicationContext[dto.VerifyFaceDTO]{
				Ctx:      ctx,
				Body:     &body,
				DeviceID: appContext.DeviceID,
			})
		})

		faceRouter.DELETE("/:username", func(ctx *gin.Context) {
			appContext := ctx.MustGet("AppContext").(*interfaces.ApplicationContext[any])
			controller.DeleteFace(&interfaces.ApplicationContext[any]{
				Ctx:      ctx,
				DeviceID: appContext.DeviceID,
			})
		})

		faceRouter.GET("/", func(ctx *gin.Context) {
			appContext := ctx.MustGet("AppContext").(*interfaces.ApplicationContext[any])
			controller.ListFaces(&interfaces.ApplicationContext[any]{
				Ctx:      ctx,
				DeviceID: appContext.DeviceID,
			})
		})
	}
}

// bindCaptureRequest decodes an enroll/verify payload from either a JSON
// body or a multipart form with a "video" file part. Multipart uploads are
// spooled to a temp file the controller removes once the capture finishes.
// Responds and returns false when the payload cannot be processed.
func bindCaptureRequest(ctx *gin.Context, username, video, videoPath *string, device *int) bool {
	if strings.HasPrefix(ctx.ContentType(), "multipart/form-data") {
		*username = ctx.PostForm("username")
		if d := ctx.PostForm("device"); d != "" {
			parsed, err := strconv.Atoi(d)
			if err != nil {
				apperrors.ErrorProcessingPayload(ctx)
				return false
			}
			*device = parsed
		}
		file, err := ctx.FormFile("video")
		if err != nil {
			// camera capture request carried as a plain form
			return true
		}
		tmp := filepath.Join(os.TempDir(), "facegate-upload-"+uuid.NewString()+filepath.Ext(file.Filename))
		if err := ctx.SaveUploadedFile(file, tmp); err != nil {
			apperrors.ErrorProcessingPayload(ctx)
			return false
		}
		*videoPath = tmp
		return true
	}

	payload := struct {
		Username string `json:"username"`
		Video    string `json:"video"`
		Device   int    `json:"device"`
	}{}
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		apperrors.ErrorProcessingPayload(ctx)
		return false
	}
	*username = payload.Username
	*video = payload.Video
	*device = payload.Device
	return true
}
