package biometric

import (
	"os"

	"facegate.humanid.io/infrastructure/biometric/types"
	"facegate.humanid.io/infrastructure/enrollment"
	"facegate.humanid.io/infrastructure/logger"
	"facegate.humanid.io/infrastructure/ratelimit"
)

// FaceGate is the process-wide pipeline instance, assembled once by
// InitialiseFaceGate before the server or CLI accepts work.
var FaceGate *FaceGateService

// InitialiseFaceGate loads the detection and encoding models and wires the
// enrollment store and the attempt governor. Panics when a model cannot be
// loaded since nothing in the service can run without them.
func InitialiseFaceGate() {
	config := types.DefaultSecurityConfig()

	detector, err := NewYuNetDetector(DefaultYuNetConfig())
	if err != nil {
		logger.Error("failed to load face detection model", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		})
		panic(err)
	}

	encoder, err := NewSFaceEncoder(DefaultSFaceConfig())
	if err != nil {
		logger.Error("failed to load face recognition model", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		})
		panic(err)
	}

	storePath := os.Getenv("FACEGATE_STORE_PATH")
	if storePath == "" {
		storePath = "./data/enrollments.json"
	}

	FaceGate = NewFaceGateService(
		detector,
		encoder,
		enrollment.NewStore(storePath),
		ratelimit.NewLoginAttemptStore(config.MaxLoginAttempts, config.LockoutTime),
		config,
	)
}
