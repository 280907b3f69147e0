package startup

import (
	"facegate.humanid.io/infrastructure/biometric"
)

// Used to start services such as loggers, models, stores, etc.
func StartServices() {
	biometric.InitialiseFaceGate()
}

// Used to clean up after services that have been shutdown.
func CleanUpServices() {
	if biometric.FaceGate != nil {
		biometric.FaceGate.Close()
	}
}
