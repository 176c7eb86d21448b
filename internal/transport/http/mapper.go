package http

import (
	"encoding/json"

	"github.com/beamchat/server/internal/core"
	"github.com/beamchat/server/internal/proto"
	"github.com/beamchat/server/internal/store"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinConversation:
		var data proto.ConversationData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.ConversationID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeMissingField, Msg: "conversation_id is required"}, nil
		}
		return &core.Command{
			Kind:           core.CommandJoinConversation,
			ConversationID: data.ConversationID,
		}, nil, nil
	case proto.InboundTypeLeaveConversation:
		var data proto.ConversationData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.ConversationID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeMissingField, Msg: "conversation_id is required"}, nil
		}
		return &core.Command{
			Kind:           core.CommandLeaveConversation,
			ConversationID: data.ConversationID,
		}, nil, nil
	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:           core.CommandSendMessage,
			ConversationID: data.ConversationID,
			Content:        data.Content,
			MessageType:    data.MessageType,
			Attachments:    data.Attachments,
		}, nil, nil
	case proto.InboundTypeMarkMessageRead:
		var data proto.MarkMessageReadData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.MessageID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeMissingField, Msg: "message_id is required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandMarkMessageRead,
			MessageID: data.MessageID,
		}, nil, nil
	case proto.InboundTypeTypingStart:
		var data proto.ConversationData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:           core.CommandTypingStart,
			ConversationID: data.ConversationID,
		}, nil, nil
	case proto.InboundTypeTypingStop:
		var data proto.ConversationData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:           core.CommandTypingStop,
			ConversationID: data.ConversationID,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func messagePayload(msg *store.Message, senderName string) proto.MessagePayload {
	return proto.MessagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     senderName,
		Content:        msg.Content,
		MessageType:    msg.MessageType,
		Attachments:    msg.Attachments,
		IsRead:         msg.IsRead,
		ReadAt:         msg.ReadAt,
		SentAt:         msg.SentAt,
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNewMessage,
			Data: proto.NewMessageData{
				Message:        messagePayload(event.Message, event.Username),
				ConversationID: event.ConversationID,
			},
		}
	case core.EventMessageRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageRead,
			Data: proto.MessageReadData{
				MessageID: event.MessageID,
				ReadBy:    event.ReadBy,
				ReadAt:    event.ReadAt,
			},
		}
	case core.EventUserOnline:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserOnline,
			Data: proto.PresenceData{
				UserID:   event.UserID,
				Username: event.Username,
			},
		}
	case core.EventUserOffline:
		lastSeen := event.LastSeen
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserOffline,
			Data: proto.PresenceData{
				UserID:   event.UserID,
				Username: event.Username,
				LastSeen: &lastSeen,
			},
		}
	case core.EventUserTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserTyping,
			Data:  conversationUserData(event),
		}
	case core.EventUserStoppedTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserStoppedTyping,
			Data:  conversationUserData(event),
		}
	case core.EventUserJoinedConversation:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserJoinedConversation,
			Data:  conversationUserData(event),
		}
	case core.EventUserLeftConversation:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserLeftConversation,
			Data:  conversationUserData(event),
		}
	case core.EventParticipantAdded:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventParticipantAdded,
			Data: proto.ParticipantAddedData{
				ConversationID: event.ConversationID,
				NewParticipant: event.NewParticipant,
				AddedBy:        event.AddedBy,
			},
		}
	case core.EventError:
		if event.Err == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Err.Code, Msg: event.Err.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func conversationUserData(event *core.Event) proto.ConversationUserData {
	return proto.ConversationUserData{
		UserID:         event.UserID,
		Username:       event.Username,
		ConversationID: event.ConversationID,
	}
}
