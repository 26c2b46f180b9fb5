package httpapi

// Config defines HTTP API settings.
type Config struct {
	Addr     string
	BaseURL  string
	BasePath string
	// HubHistory bounds the messages kept for Last-Event-ID replay.
	HubHistory int
}
