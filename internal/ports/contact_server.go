package ports

// ContactServer is the inbound adapter that receives contact submissions
type ContactServer interface {
	// Start begins serving in the background
	Start() error

	// Stop shuts the server down, letting in-flight requests finish
	Stop() error
}
