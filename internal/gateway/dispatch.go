package gateway

import (
	"context"

	"social-chat/internal/models"
	"social-chat/internal/presence"
	"social-chat/internal/websocket"
	apperrors "social-chat/pkg/errors"
)

// Connected, Disconnected and HandleMessage make the gateway the hub's handler.

func (g *Gateway) Connected(ctx context.Context, c *websocket.Client) {
	g.Connect(ctx, c)
}

func (g *Gateway) Disconnected(ctx context.Context, c *websocket.Client) {
	g.Disconnect(ctx, c)
}

func (g *Gateway) HandleMessage(ctx context.Context, c *websocket.Client, msg *websocket.Message) {
	g.Dispatch(ctx, c, msg)
}

// Dispatch runs one inbound command for conn. Failures are answered with
// an error event on that connection only.
func (g *Gateway) Dispatch(ctx context.Context, conn presence.Conn, msg *websocket.Message) {
	userID := conn.UserID()

	var err error
	switch msg.Type {
	case websocket.MessageTypeSendMessage:
		var req models.SendMessageRequest
		if err = decode(msg, &req); err == nil {
			_, err = g.Send(ctx, userID, req.ReceiverID, req.Content, req.MessageType)
		}

	case websocket.MessageTypeTypingStart, websocket.MessageTypeTypingStop:
		var cmd models.TypingCommand
		if err = decode(msg, &cmd); err == nil {
			if msg.Type == websocket.MessageTypeTypingStart {
				g.TypingStart(ctx, userID, cmd.ReceiverID)
			} else {
				g.TypingStop(ctx, userID, cmd.ReceiverID)
			}
		}

	case websocket.MessageTypeMarkRead:
		var cmd models.MarkReadCommand
		if err = decode(msg, &cmd); err == nil {
			_, err = g.MarkMessagesRead(ctx, userID, cmd.FriendID)
		}

	case websocket.MessageTypeUpdateStatus:
		var cmd models.UpdateStatusRequest
		if err = decode(msg, &cmd); err == nil {
			_, err = g.UpdateStatus(ctx, userID, cmd.Status)
		}

	case websocket.MessageTypeCallAccept, websocket.MessageTypeCallReject:
		var cmd models.CallCommand
		if err = decode(msg, &cmd); err == nil {
			_, err = g.calls.RespondToCall(ctx, cmd.CallID, userID, msg.Type == websocket.MessageTypeCallAccept)
		}

	case websocket.MessageTypeCallEnd:
		var cmd models.CallCommand
		if err = decode(msg, &cmd); err == nil {
			_, err = g.calls.EndCall(ctx, cmd.CallID, userID)
		}

	case websocket.MessageTypeCallSignal:
		var cmd models.CallSignalCommand
		if err = decode(msg, &cmd); err == nil {
			err = g.calls.RelaySignal(ctx, cmd.CallID, userID, cmd.To, cmd.Signal)
		}

	default:
		err = apperrors.InvalidArg("unsupported message type: " + msg.Type.String())
	}

	if err != nil {
		sendError(conn, err)
	}
}

// decode reports malformed payloads as invalid arguments.
func decode(msg *websocket.Message, dest any) error {
	if err := msg.Decode(dest); err != nil {
		return apperrors.InvalidArg("invalid " + msg.Type.String() + " payload")
	}
	return nil
}
