package bus

import "time"

// MetaSenderIsAdmin is the InboundEvent.Metadata key a transport sets
// to true when it has verified the sender is an admin of the
// originating group chat.
const MetaSenderIsAdmin = "senderIsAdmin"

// Attachment describes a media payload carried by an inbound event.
type Attachment struct {
	Kind     string `json:"kind"` // image, video, audio, document
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// InboundEvent represents one received chat message from any transport.
// It is immutable once constructed and lives for the duration of a single
// pipeline run.
type InboundEvent struct {
	Channel    string                 `json:"channel"` // telegram, whatsapp, cli
	ID         string                 `json:"id"`      // transport message id
	Sender     string                 `json:"sender"`  // sender JID
	Chat       string                 `json:"chat"`    // chat JID
	Text       string                 `json:"text,omitempty"`
	Attachment *Attachment            `json:"attachment,omitempty"`
	FromSelf   bool                   `json:"fromSelf"`
	IsGroup    bool                   `json:"isGroup"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ConversationKey returns a unique identifier for the conversation the
// event belongs to.
func (e *InboundEvent) ConversationKey() string {
	return e.Channel + ":" + e.Chat
}

// OutboundMessage represents a reply or reaction to be delivered by a
// transport channel.
type OutboundMessage struct {
	Channel  string                 `json:"channel"`
	ChatID   string                 `json:"chatId"`
	Content  string                 `json:"content,omitempty"`
	Reaction string                 `json:"reaction,omitempty"` // emoji; reacts to ReplyTo
	ReplyTo  string                 `json:"replyTo,omitempty"`
	Media    []string               `json:"media,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Responder is the outbound capability bound to the chat an event came
// from. Exactly one of these is handed to the pipeline per event.
type Responder interface {
	// Reply sends a text message back to the originating chat.
	Reply(text string) error
	// React attaches an emoji reaction to the originating message.
	React(emoji string) error
}

// busResponder publishes replies and reactions for a single event onto
// the message bus.
type busResponder struct {
	bus     *MessageBus
	channel string
	chatID  string
	replyTo string
}

// NewResponder returns a Responder that publishes outbound messages for
// the given channel and chat.
func NewResponder(b *MessageBus, channel, chatID, replyTo string) Responder {
	return &busResponder{bus: b, channel: channel, chatID: chatID, replyTo: replyTo}
}

func (r *busResponder) Reply(text string) error {
	r.bus.PublishOutbound(OutboundMessage{
		Channel: r.channel,
		ChatID:  r.chatID,
		Content: text,
		ReplyTo: r.replyTo,
	})
	return nil
}

func (r *busResponder) React(emoji string) error {
	r.bus.PublishOutbound(OutboundMessage{
		Channel:  r.channel,
		ChatID:   r.chatID,
		Reaction: emoji,
		ReplyTo:  r.replyTo,
	})
	return nil
}
