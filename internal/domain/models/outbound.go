package models

// OutboundMessageRequest represents requests to send a message manually via the API.
type OutboundMessageRequest struct {
	To         string `json:"to" binding:"required"`
	Message    string `json:"message" binding:"required"`
	PreviewURL bool   `json:"preview_url"`
}

// OutboundDocument is a file delivered as a WhatsApp document message.
type OutboundDocument struct {
	To       string
	FileName string
	Caption  string
	MimeType string
	Content  []byte
}

// ShareResult tells the caller how a statement was shared. When delivery
// through the Cloud API is unavailable only Link is set.
type ShareResult struct {
	Delivered bool   `json:"delivered"`
	To        string `json:"to"`
	Link      string `json:"link"`
	Message   string `json:"message"`
}
