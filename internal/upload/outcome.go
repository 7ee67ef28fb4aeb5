package upload

// Kind classifies how a submission ended.
type Kind string

const (
	KindSuccess         Kind = "success"
	KindAuthError       Kind = "auth_error"
	KindValidationError Kind = "validation_error"
	KindNetworkError    Kind = "network_error"
	KindUnknownError    Kind = "unknown_error"
)

const (
	successMessage = "File uploaded successfully"
	failurePrefix  = "Upload failed: "
)

// Outcome is the single user-facing result of a submission.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

func succeeded() Outcome {
	return Outcome{Success: true, Message: successMessage, Kind: KindSuccess}
}

// Failed builds an unsuccessful Outcome; msg is prefixed with "Upload failed: ".
func Failed(kind Kind, msg string) Outcome {
	return Outcome{Success: false, Message: failurePrefix + msg, Kind: kind}
}
