package http

import (
	"encoding/json"
	"fmt"

	"github.com/parley-chat/parley-server/internal/core"
	"github.com/parley-chat/parley-server/internal/proto"
)

// errUnknownType marks frames whose type tag is not part of the protocol.
// They are logged and ignored, never fatal.
type errUnknownType struct {
	kind string
}

func (e errUnknownType) Error() string {
	return fmt.Sprintf("unknown frame type %q", e.kind)
}

// frameToCommand decodes an inbound frame into a core command. A decode
// failure means a malformed payload; the caller drops the frame.
func frameToCommand(client *core.Client, frameType string, raw []byte) (core.Command, error) {
	switch frameType {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(raw, &join); err != nil {
			return core.Command{}, fmt.Errorf("decode join: %w", err)
		}
		return core.Command{
			Kind:     core.CommandJoin,
			Client:   client,
			Name:     join.UserName,
			Password: join.Password,
			Token:    join.Token,
		}, nil

	case proto.InboundTypeChatMessage, proto.InboundTypeAdminMessage, proto.InboundTypeFeatureRequest:
		var text proto.TextData
		if err := json.Unmarshal(raw, &text); err != nil {
			return core.Command{}, fmt.Errorf("decode %s: %w", frameType, err)
		}
		kind := core.CommandChatMessage
		switch frameType {
		case proto.InboundTypeAdminMessage:
			kind = core.CommandAdminMessage
		case proto.InboundTypeFeatureRequest:
			kind = core.CommandFeatureRequest
		}
		return core.Command{Kind: kind, Client: client, Text: text.Text}, nil

	case proto.InboundTypeBanUser, proto.InboundTypeUnbanUser:
		var target proto.UserTargetData
		if err := json.Unmarshal(raw, &target); err != nil {
			return core.Command{}, fmt.Errorf("decode %s: %w", frameType, err)
		}
		kind := core.CommandBanUser
		if frameType == proto.InboundTypeUnbanUser {
			kind = core.CommandUnbanUser
		}
		return core.Command{Kind: kind, Client: client, TargetID: target.UserID}, nil

	case proto.InboundTypeClearChat:
		return core.Command{Kind: core.CommandClearChat, Client: client}, nil

	case proto.InboundTypeDeleteFeatureRequest:
		var target proto.RequestTargetData
		if err := json.Unmarshal(raw, &target); err != nil {
			return core.Command{}, fmt.Errorf("decode deleteFeatureRequest: %w", err)
		}
		return core.Command{
			Kind:     core.CommandDeleteFeatureRequest,
			Client:   client,
			TargetID: target.RequestID,
		}, nil

	default:
		return core.Command{}, errUnknownType{kind: frameType}
	}
}

// frameFromEvent converts a core event into the outbound frame to send.
func frameFromEvent(event *core.Event) any {
	switch event.Kind {
	case core.EventJoinSuccess:
		return proto.JoinSuccess{
			Type:     proto.OutboundTypeJoinSuccess,
			UserID:   event.Identity.ID,
			UserName: event.Identity.Name,
			Role:     event.Identity.Role.String(),
			Token:    event.Token,
		}

	case core.EventConnectionDenied:
		return proto.ConnectionDenied{
			Type:   proto.OutboundTypeConnectionDenied,
			Reason: event.Reason,
		}

	case core.EventBannedNotice:
		return proto.Banned{
			Type:   proto.OutboundTypeBanned,
			Reason: event.Reason,
		}

	case core.EventHistory:
		messages := make([]proto.ChatMessage, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, proto.ChatMessage{
				UserName: msg.Author,
				Text:     msg.Text,
				TS:       msg.CreatedAt.Unix(),
				IsAdmin:  msg.AuthorIsAdmin,
			})
		}
		return proto.ChatHistory{
			Type:     proto.OutboundTypeChatHistory,
			Messages: messages,
		}

	case core.EventNewMessage:
		return proto.NewMessage{
			Type:     proto.OutboundTypeNewMessage,
			UserName: event.Message.Author,
			Text:     event.Message.Text,
			TS:       event.Message.CreatedAt.Unix(),
			IsAdmin:  event.Message.AuthorIsAdmin,
		}

	case core.EventUserLists:
		users := make([]proto.UserEntry, 0, len(event.Users))
		for _, u := range event.Users {
			role := core.RoleRegular
			if u.Admin {
				role = core.RoleAdmin
			}
			users = append(users, proto.UserEntry{
				UserID:   u.ID,
				UserName: u.Name,
				Role:     role.String(),
			})
		}
		banned := make([]proto.BanEntry, 0, len(event.Bans))
		for _, b := range event.Bans {
			banned = append(banned, proto.BanEntry{UserID: b.ID, UserName: b.Name})
		}
		return proto.UpdateUserLists{
			Type:   proto.OutboundTypeUpdateUserLists,
			Users:  users,
			Banned: banned,
		}

	case core.EventAlert:
		alert := proto.Alert{Type: proto.OutboundTypeAlert}
		if event.Alert != nil {
			alert.Code = event.Alert.Code
			alert.Message = event.Alert.Message
		}
		return alert

	case core.EventFeatureRequests:
		requests := make([]proto.FeatureRequestEntry, 0, len(event.Requests))
		for _, req := range event.Requests {
			requests = append(requests, proto.FeatureRequestEntry{
				RequestID: req.ID,
				UserName:  req.Author,
				Text:      req.Text,
				TS:        req.CreatedAt.Unix(),
			})
		}
		return proto.UpdateFeatureRequests{
			Type:     proto.OutboundTypeUpdateFeatureRequests,
			Requests: requests,
		}

	default:
		return proto.Alert{Type: proto.OutboundTypeAlert, Code: "unknown", Message: "unknown event"}
	}
}
