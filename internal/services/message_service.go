package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"gorm.io/gorm"

	"socialchat/internal/chatwire"
	"socialchat/internal/config"
	appKafka "socialchat/internal/kafka"
	"socialchat/internal/models"
	"socialchat/internal/storage"
)

var (
	// ErrMessageNotFound is returned when the message does not exist.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotMessageSender is returned when someone other than the sender
	// tries to delete a message.
	ErrNotMessageSender = errors.New("only the sender may delete a message")
)

// MessageService defines message-level operations: ingestion from the socket
// layer, the Kafka-driven persistence pipeline, history pages, the REST send
// fallback and deletion.
type MessageService interface {
	// Ingest enqueues a raw inbound frame onto the message pipeline.
	Ingest(ctx context.Context, input chatwire.RawMessageInput) error
	// ProcessKafkaMessage is the pipeline consumer callback: it persists the
	// message, advances the conversation, and fans the stored record out to
	// both the recipient and the sender.
	ProcessKafkaMessage(ctx context.Context, kafkaMsg *confluentKafka.Message) error
	// GetMessagesPage returns one page of a conversation's history.
	GetMessagesPage(ctx context.Context, conversationID uint, page, size int) (chatwire.Page[chatwire.Message], error)
	// SendMessageREST is the REST fallback: it stores the message directly
	// and fans it out, bypassing the socket.
	SendMessageREST(ctx context.Context, senderID uint, req chatwire.SendMessageRequest) (*chatwire.Message, error)
	// DeleteMessage removes a message the user sent.
	DeleteMessage(ctx context.Context, userID, messageID uint) error
}

// messageService implements MessageService.
type messageService struct {
	msgRepo   storage.MessageRepository
	convoRepo storage.ConversationRepository
	producer  appKafka.MessageProducer
	cfg       config.Config
}

// NewMessageService creates a new MessageService.
func NewMessageService(msgRepo storage.MessageRepository, convoRepo storage.ConversationRepository, producer appKafka.MessageProducer, cfg config.Config) MessageService {
	return &messageService{
		msgRepo:   msgRepo,
		convoRepo: convoRepo,
		producer:  producer,
		cfg:       cfg,
	}
}

// Ingest serializes the frame and hands it to the inbound topic, keyed by
// sender so one user's messages stay ordered.
func (s *messageService) Ingest(ctx context.Context, input chatwire.RawMessageInput) error {
	if input.SenderID == 0 || input.RecipientID == 0 {
		return fmt.Errorf("sender and recipient must be set")
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("serializing message input: %w", err)
	}

	key := []byte(strconv.FormatUint(uint64(input.SenderID), 10))
	if err := s.producer.SendMessage(ctx, s.cfg.Kafka.InboundTopic, key, payload); err != nil {
		return fmt.Errorf("producing to inbound topic: %w", err)
	}
	return nil
}

// ProcessKafkaMessage consumes one frame from the inbound topic.
func (s *messageService) ProcessKafkaMessage(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
	var input chatwire.RawMessageInput
	if err := json.Unmarshal(kafkaMsg.Value, &input); err != nil {
		return fmt.Errorf("deserializing inbound frame: %w, raw: %s", err, string(kafkaMsg.Value))
	}

	stored, err := s.storeMessage(ctx, input)
	if err != nil {
		return err
	}

	s.fanOut(ctx, stored, input.RecipientID, input.SenderID)
	return nil
}

// storeMessage finds or creates the 1:1 conversation, persists the message
// and advances the conversation's last message (which bumps its updatedAt).
func (s *messageService) storeMessage(ctx context.Context, input chatwire.RawMessageInput) (*chatwire.Message, error) {
	conversation, _, err := s.convoRepo.GetOrCreatePrivateConversation(ctx, input.SenderID, input.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("resolving conversation: %w", err)
	}

	messageType := input.MessageType
	if messageType == "" {
		messageType = string(models.TextMessageType)
	}

	dbMessage := &models.Message{
		ConversationID: conversation.ID,
		SenderID:       input.SenderID,
		Type:           models.MessageType(messageType),
		Content:        input.Content,
	}
	if !input.Timestamp.IsZero() {
		dbMessage.CreatedAt = input.Timestamp
	}
	if err := s.msgRepo.Create(ctx, dbMessage); err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}

	conversation.LastMessageID = &dbMessage.ID
	if err := s.convoRepo.UpdateConversation(ctx, conversation); err != nil {
		return nil, fmt.Errorf("updating conversation %d: %w", conversation.ID, err)
	}

	// Reload with sender attached so clients can render without a join.
	withSender, err := s.msgRepo.GetByID(ctx, dbMessage.ID)
	if err != nil {
		withSender = dbMessage
	}
	return toWireMessage(withSender), nil
}

// fanOut pushes the stored message to the outbound topic for every target
// user. The sender receives its own echo; clients deduplicate by message ID.
func (s *messageService) fanOut(ctx context.Context, msg *chatwire.Message, targets ...uint) {
	frame := chatwire.ServerFrame{Event: chatwire.EventMessage, Message: msg}
	for _, target := range targets {
		delivery := chatwire.Delivery{TargetUserID: target, Frame: frame}
		payload, err := json.Marshal(delivery)
		if err != nil {
			log.Printf("serializing delivery for user %d: %v", target, err)
			continue
		}
		key := []byte(strconv.FormatUint(uint64(target), 10))
		if err := s.producer.SendMessage(ctx, s.cfg.Kafka.OutboundTopic, key, payload); err != nil {
			log.Printf("producing delivery for user %d: %v", target, err)
		}
	}
}

// GetMessagesPage fetches one page, newest first as stored; the page carries
// no ordering promise beyond that and clients sort by createdAt.
func (s *messageService) GetMessagesPage(ctx context.Context, conversationID uint, page, size int) (chatwire.Page[chatwire.Message], error) {
	var empty chatwire.Page[chatwire.Message]

	total, err := s.msgRepo.CountByConversationID(ctx, conversationID)
	if err != nil {
		return empty, fmt.Errorf("counting messages for conversation %d: %w", conversationID, err)
	}

	messages, err := s.msgRepo.GetByConversationID(ctx, conversationID, size, page*size)
	if err != nil {
		return empty, fmt.Errorf("fetching messages for conversation %d: %w", conversationID, err)
	}

	wireMessages := make([]chatwire.Message, 0, len(messages))
	for _, m := range messages {
		wireMessages = append(wireMessages, *toWireMessage(m))
	}
	return chatwire.NewPage(wireMessages, page, size, int(total)), nil
}

// SendMessageREST stores a message addressed by conversation rather than
// recipient, then fans it out to every participant.
func (s *messageService) SendMessageREST(ctx context.Context, senderID uint, req chatwire.SendMessageRequest) (*chatwire.Message, error) {
	conversation, err := s.convoRepo.GetConversationByID(ctx, req.ConversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %d not found", req.ConversationID)
		}
		return nil, fmt.Errorf("fetching conversation: %w", err)
	}

	participants, err := s.convoRepo.GetConversationParticipants(ctx, conversation.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching participants: %w", err)
	}

	var recipientID uint
	isMember := false
	for _, p := range participants {
		if p.UserID == senderID {
			isMember = true
		} else {
			recipientID = p.UserID
		}
	}
	if !isMember {
		return nil, ErrNotParticipant
	}
	if recipientID == 0 {
		return nil, fmt.Errorf("conversation %d has no counterpart participant", conversation.ID)
	}

	stored, err := s.storeMessage(ctx, chatwire.RawMessageInput{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     req.Content,
		MessageType: req.MessageType,
		Timestamp:   time.Now(),
	})
	if err != nil {
		return nil, err
	}

	s.fanOut(ctx, stored, recipientID, senderID)
	return stored, nil
}

// DeleteMessage removes the message permanently. Only the sender may do so.
func (s *messageService) DeleteMessage(ctx context.Context, userID, messageID uint) error {
	message, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("fetching message %d: %w", messageID, err)
	}
	if message.SenderID != userID {
		return ErrNotMessageSender
	}
	if err := s.msgRepo.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("deleting message %d: %w", messageID, err)
	}
	return nil
}
