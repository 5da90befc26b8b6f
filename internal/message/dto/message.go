package dto

// LinkAccountRequest binds a Gmail mailbox to the authenticated user.
type LinkAccountRequest struct {
	GmailAddress string `json:"gmail_address" binding:"required,email"`
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// SmsSyncItem is one SMS record uploaded by a device.
type SmsSyncItem struct {
	Address     string `json:"address"`
	Body        string `json:"body"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// SmsSyncRequest is a batch of SMS records uploaded by a device.
type SmsSyncRequest struct {
	Messages []SmsSyncItem `json:"messages" binding:"required"`
}

// PubSubPushEnvelope is the wrapper Google Pub/Sub puts around a push
// delivery. Data is the base64-encoded notification payload.
type PubSubPushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}
