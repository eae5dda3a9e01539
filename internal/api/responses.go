package api

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status   string `json:"status" example:"ok"`
	Database string `json:"database,omitempty" example:"ok"`
}

type AvailabilityResponse struct {
	ClassID   string `json:"class_id"`
	Available bool   `json:"available"`
}

// RedirectResponse tells the caller where the client navigated after an
// auth action.
type RedirectResponse struct {
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect"`
}
