package graph

// Message is the subset of the Graph message resource the pipeline uses.
type Message struct {
	ID                string       `json:"id"`
	Subject           string       `json:"subject"`
	ConversationID    string       `json:"conversationId"`
	ReceivedDateTime  string       `json:"receivedDateTime"`
	SentDateTime      string       `json:"sentDateTime"`
	From              interface{}  `json:"from"`
	ToRecipients      []Recipient  `json:"toRecipients"`
	CcRecipients      []Recipient  `json:"ccRecipients"`
	Body              *MessageBody `json:"body"`
	BodyPreview       string       `json:"bodyPreview"`
	HasAttachments    bool         `json:"hasAttachments"`
	InternetMessageID string       `json:"internetMessageId"`
}

type MessageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// AttachmentListItem is one entry of a message's attachment listing.
type AttachmentListItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// FileContent holds downloaded attachment bytes.
type FileContent struct {
	Name        string
	ContentType string
	Bytes       []byte
}

// DraftContent is the payload for a new draft message.
type DraftContent struct {
	Subject  string
	BodyHTML string
	To       []string
	Cc       []string
}

// DraftPatch updates an existing draft. Nil/empty fields are left alone.
type DraftPatch struct {
	Subject  string
	BodyHTML string
	To       []string
	Cc       []string
}

type listResponse[T any] struct {
	Value     []T    `json:"value"`
	NextLink  string `json:"@odata.nextLink"`
	DeltaLink string `json:"@odata.deltaLink"`
}
