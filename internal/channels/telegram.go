package channels

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/marhthing/pipebot/internal/bus"
	"github.com/marhthing/pipebot/internal/config"
)

// telegramSuffix turns numeric Telegram IDs into the JID form the rest
// of the host works with, e.g. "12345@telegram".
const telegramSuffix = "@telegram"

// adminCacheTTL bounds how long a chat-member admin check is trusted
// before the Bot API is asked again.
const adminCacheTTL = 5 * time.Minute

type adminStatus struct {
	isAdmin   bool
	checkedAt time.Time
}

// TelegramChannel implements the Channel interface for Telegram messaging.
type TelegramChannel struct {
	BaseChannel
	token     string
	allowFrom []string
	bot       *tgbotapi.BotAPI

	// chatIDs maps JID-form chat IDs back to int64 for sending
	chatIDs map[string]int64
	chatMu  sync.RWMutex

	// adminCache memoizes per chat:user admin lookups.
	adminCache map[string]adminStatus
	adminMu    sync.RWMutex

	cancel context.CancelFunc
}

// NewTelegramChannel creates a new Telegram channel instance.
func NewTelegramChannel(cfg config.TelegramConfig, msgBus *bus.MessageBus) *TelegramChannel {
	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", msgBus),
		token:       cfg.Token,
		allowFrom:   cfg.AllowFrom,
		chatIDs:     make(map[string]int64),
		adminCache:  make(map[string]adminStatus),
	}
}

// Start begins listening for Telegram updates.
func (c *TelegramChannel) Start(ctx context.Context) error {
	if c.IsRunning() {
		return fmt.Errorf("telegram channel is already running")
	}

	bot, err := tgbotapi.NewBotAPI(c.token)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	c.bot = bot

	log.Printf("[telegram] authorized as @%s", bot.Self.UserName)

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60 // Long polling timeout

	updates := bot.GetUpdatesChan(u)

	c.setRunning(true)

	c.getBus().SubscribeOutbound("telegram", func(msg bus.OutboundMessage) {
		if err := c.Send(msg); err != nil {
			log.Printf("[telegram] send failed: %v", err)
		}
	})

	go c.processUpdates(ctx, updates)

	return nil
}

// processUpdates handles incoming Telegram updates.
func (c *TelegramChannel) processUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[telegram] update processing stopped")
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			c.handleMessage(update.Message)
		}
	}
}

// handleMessage converts one Telegram message into an inbound event.
// Messages from senders outside a configured allow-list are dropped
// before they reach the bus.
func (c *TelegramChannel) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil || !allowedSender(c.allowFrom, msg.From.ID, msg.From.UserName) {
		return
	}

	chatJID := strconv.FormatInt(msg.Chat.ID, 10) + telegramSuffix
	c.chatMu.Lock()
	c.chatIDs[chatJID] = msg.Chat.ID
	c.chatMu.Unlock()

	metadata := make(map[string]interface{})
	metadata["chatType"] = msg.Chat.Type
	if msg.From.UserName != "" {
		metadata["username"] = msg.From.UserName
	}

	isGroup := msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()
	if isGroup {
		metadata[bus.MetaSenderIsAdmin] = c.senderIsAdmin(msg.Chat.ID, msg.From.ID)
	}

	evt := bus.InboundEvent{
		ID:       strconv.Itoa(msg.MessageID),
		Sender:   strconv.FormatInt(msg.From.ID, 10) + telegramSuffix,
		Chat:     chatJID,
		FromSelf: msg.From.ID == c.bot.Self.ID,
		IsGroup:  isGroup,
		Metadata: metadata,
	}

	switch {
	case len(msg.Photo) > 0:
		// Highest resolution is last.
		photo := msg.Photo[len(msg.Photo)-1]
		evt.Text = msg.Caption
		evt.Attachment = &bus.Attachment{
			Kind: "image",
			URL:  c.fileURL(photo.FileID),
		}

	case msg.Document != nil:
		evt.Text = msg.Caption
		evt.Attachment = &bus.Attachment{
			Kind:     "document",
			URL:      c.fileURL(msg.Document.FileID),
			MimeType: msg.Document.MimeType,
			FileName: msg.Document.FileName,
		}

	case msg.Voice != nil:
		evt.Attachment = &bus.Attachment{
			Kind:     "audio",
			URL:      c.fileURL(msg.Voice.FileID),
			MimeType: msg.Voice.MimeType,
		}

	case msg.Text != "":
		evt.Text = msg.Text

	default:
		if msg.Caption != "" {
			evt.Text = msg.Caption
		}
	}

	c.publishInbound(evt)
}

// allowedSender applies the channel allow-list. An empty list forwards
// everyone; entries match the numeric user ID or the username, with a
// leading "@" tolerated and case ignored.
func allowedSender(allowFrom []string, id int64, username string) bool {
	if len(allowFrom) == 0 {
		return true
	}
	idStr := strconv.FormatInt(id, 10)
	for _, entry := range allowFrom {
		entry = strings.TrimPrefix(strings.TrimSpace(entry), "@")
		if entry == idStr || (username != "" && strings.EqualFold(entry, username)) {
			return true
		}
	}
	return false
}

// senderIsAdmin reports whether the user is a creator or administrator
// of the group chat, caching results so high-traffic groups do not hit
// the Bot API per message. Lookup failures count as not admin.
func (c *TelegramChannel) senderIsAdmin(chatID, userID int64) bool {
	key := strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)

	c.adminMu.RLock()
	cached, ok := c.adminCache[key]
	c.adminMu.RUnlock()
	if ok && time.Since(cached.checkedAt) < adminCacheTTL {
		return cached.isAdmin
	}

	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		log.Printf("[telegram] admin check %s: %v", key, err)
		return false
	}
	isAdmin := member.IsCreator() || member.IsAdministrator()

	c.adminMu.Lock()
	c.adminCache[key] = adminStatus{isAdmin: isAdmin, checkedAt: time.Now()}
	c.adminMu.Unlock()
	return isAdmin
}

// fileURL resolves a Telegram file ID to a downloadable URL. Returns ""
// when resolution fails; the media stage skips empty URLs.
func (c *TelegramChannel) fileURL(fileID string) string {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		log.Printf("[telegram] resolve file %s: %v", fileID, err)
		return ""
	}
	return file.Link(c.token)
}

// Stop gracefully shuts down the Telegram channel.
func (c *TelegramChannel) Stop() error {
	if !c.IsRunning() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.bot != nil {
		c.bot.StopReceivingUpdates()
	}

	c.setRunning(false)
	log.Println("[telegram] channel stopped")
	return nil
}

// Send delivers an outbound message through Telegram. Reactions are
// sent as a short reply carrying the emoji; the Bot API in use has no
// native reaction endpoint.
func (c *TelegramChannel) Send(msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram channel is not running")
	}

	chatID, err := c.getChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	content := msg.Content
	if content == "" && msg.Reaction != "" {
		content = msg.Reaction
	}

	telegramMsg := tgbotapi.NewMessage(chatID, content)
	if msg.ReplyTo != "" {
		if replyID, err := strconv.Atoi(msg.ReplyTo); err == nil {
			telegramMsg.ReplyToMessageID = replyID
		}
	}

	_, err = c.bot.Send(telegramMsg)
	return err
}

// getChatID retrieves the int64 chat ID from a JID-form string ID.
func (c *TelegramChannel) getChatID(chatJID string) (int64, error) {
	c.chatMu.RLock()
	if chatID, ok := c.chatIDs[chatJID]; ok {
		c.chatMu.RUnlock()
		return chatID, nil
	}
	c.chatMu.RUnlock()

	raw := strings.TrimSuffix(strings.TrimSpace(chatJID), telegramSuffix)
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse chat ID '%s': %w", chatJID, err)
	}

	c.chatMu.Lock()
	c.chatIDs[chatJID] = chatID
	c.chatMu.Unlock()

	return chatID, nil
}
