package middlewares

import (
	"errors"

	apperrors "facegate.humanid.io/application/appErrors"
	"facegate.humanid.io/application/interfaces"
	"facegate.humanid.io/infrastructure/useragent"
)

// UserAgentMiddleware annotates the request context with the parsed client
// agent and the device id header. The device id is optional; it only feeds
// the audit log.
func UserAgentMiddleware(ctx *interfaces.ApplicationContext[any]) (*interfaces.ApplicationContext[any], bool) {
	agent := ctx.GetHeader("User-Agent")
	if agent == nil {
		apperrors.ClientError(ctx.Ctx, "user agent header missing", []error{errors.New("user agent header missing")})
		return nil, false
	}
	agentDetails := useragent.ParseUserAgent(*agent)
	ctx.UserAgent = *agent
	ctx.DeviceName = agentDetails.Name
	if deviceID := ctx.GetHeader("X-Device-Id"); deviceID != nil {
		ctx.DeviceID = *deviceID
	}
	return ctx, true
}
