package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"social-chat/internal/cache"
	"social-chat/internal/models"
	"social-chat/internal/websocket"
	apperrors "social-chat/pkg/errors"

	"github.com/google/uuid"
)

const (
	endReasonTimeout      = "timeout"
	endReasonDisconnected = "disconnected"
	endReasonUnfriended   = "unfriended"

	// minTombstoneRetention bounds how long a finished call is remembered
	// in process, independent of the shared cache TTL.
	minTombstoneRetention = 24 * time.Hour
)

type tombstone struct {
	session models.CallSession
	until   time.Time
}

// CallService runs the invite/accept/reject/end handshake. Live sessions
// stay in memory; finished ones are kept as tombstones and parked in the
// cache so late calls get a stable answer.
type CallService struct {
	mu    sync.Mutex
	calls map[string]*models.CallSession
	ended map[string]tombstone

	friends       *FriendService
	users         *UserService
	notifier      Notifier
	finished      cache.Cache
	inviteTimeout time.Duration
	finishedTTL   time.Duration
	retention     time.Duration
	now           func() time.Time
}

func NewCallService(friends *FriendService, users *UserService, finished cache.Cache, inviteTimeout, finishedTTL time.Duration) *CallService {
	if inviteTimeout <= 0 {
		inviteTimeout = 60 * time.Second
	}
	retention := finishedTTL
	if retention < minTombstoneRetention {
		retention = minTombstoneRetention
	}
	s := &CallService{
		calls:         make(map[string]*models.CallSession),
		ended:         make(map[string]tombstone),
		friends:       friends,
		users:         users,
		notifier:      nopNotifier{},
		finished:      finished,
		inviteTimeout: inviteTimeout,
		finishedTTL:   finishedTTL,
		retention:     retention,
		now:           time.Now,
	}
	friends.OnPairClosed(func(ctx context.Context, a, b uint) {
		if n := s.EndAllBetween(ctx, a, b); n > 0 {
			slog.Info("Ended calls of closed pair", "userID", a, "friendID", b, "count", n)
		}
	})
	return s
}

func (s *CallService) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

func finishedKey(callID string) string {
	return "call:" + callID
}

func newCallID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// InitiateCall creates an invited session. When the receiver has no live
// connection the session is still returned together with PeerUnreachable.
func (s *CallService) InitiateCall(ctx context.Context, callerID, receiverID uint, callType models.CallType) (*models.CallSession, error) {
	if !callType.IsValid() {
		return nil, apperrors.InvalidArg("call type must be audio or video")
	}
	if callerID == receiverID {
		return nil, apperrors.InvalidArg("cannot call yourself")
	}
	if err := s.friends.RequireFriends(ctx, callerID, receiverID); err != nil {
		return nil, err
	}

	session := &models.CallSession{
		CallID:     newCallID(),
		CallerID:   callerID,
		ReceiverID: receiverID,
		Type:       callType,
		State:      models.CallInvited,
		InvitedAt:  s.now(),
	}

	s.mu.Lock()
	s.calls[session.CallID] = session
	snapshot := *session
	s.mu.Unlock()

	slog.Info("Call initiated", "callID", session.CallID, "callerID", callerID, "receiverID", receiverID, "type", callType)

	ev := models.IncomingCallEvent{CallID: session.CallID, Type: callType}
	if caller, err := s.users.FindByID(ctx, callerID); err == nil {
		resp := caller.ToResponse()
		ev.Caller = &resp
	} else {
		ev.Caller = &models.UserResponse{ID: callerID}
	}

	eventType := websocket.MessageTypeIncomingAudioCall
	if callType == models.CallTypeVideo {
		eventType = websocket.MessageTypeIncomingVideoCall
	}
	delivered := s.notifier.Notify(ctx, Event{Type: eventType, Recipient: receiverID, Actor: callerID, Data: ev})
	if !delivered {
		return &snapshot, apperrors.PeerUnreachable("receiver is offline")
	}
	return &snapshot, nil
}

// lookup returns the live session, or the terminal error for a call that
// is remembered in process. Both are nil on a miss. Caller must hold s.mu.
func (s *CallService) lookup(callID string) (*models.CallSession, error) {
	if session, ok := s.calls[callID]; ok {
		return session, nil
	}
	if t, ok := s.ended[callID]; ok {
		return nil, apperrors.InvalidState("call already " + string(t.session.State))
	}
	return nil, nil
}

// missing resolves a lookup miss against the shared cache. It must be
// called without s.mu held.
func (s *CallService) missing(ctx context.Context, callID string) error {
	if done := s.loadFinished(ctx, callID); done != nil {
		return apperrors.InvalidState("call already " + string(done.State))
	}
	return apperrors.NotFound("call not found")
}

func (s *CallService) loadFinished(ctx context.Context, callID string) *models.CallSession {
	if s.finished == nil {
		return nil
	}
	var done models.CallSession
	ok, err := s.finished.Get(ctx, finishedKey(callID), &done)
	if err != nil {
		slog.Warn("Failed to read finished call", "callID", callID, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &done
}

// finishedCall returns a copy of a call that is no longer live, checking the
// tombstones before the shared cache.
func (s *CallService) finishedCall(ctx context.Context, callID string) *models.CallSession {
	s.mu.Lock()
	t, ok := s.ended[callID]
	s.mu.Unlock()
	if ok {
		done := t.session
		return &done
	}
	return s.loadFinished(ctx, callID)
}

// finish moves session to a terminal state and leaves a tombstone.
// Caller must hold s.mu and hand the result to park once unlocked.
func (s *CallService) finish(session *models.CallSession, state models.CallState, endedBy uint) models.CallSession {
	now := s.now()
	session.State = state
	session.EndedAt = &now
	session.EndedBy = endedBy
	delete(s.calls, session.CallID)
	s.ended[session.CallID] = tombstone{session: *session, until: now.Add(s.retention)}
	return *session
}

// park copies finished sessions into the shared cache. It must be called
// without s.mu held.
func (s *CallService) park(ctx context.Context, sessions ...models.CallSession) {
	if s.finished == nil {
		return
	}
	for i := range sessions {
		if err := s.finished.Set(ctx, finishedKey(sessions[i].CallID), &sessions[i], s.finishedTTL); err != nil {
			slog.Warn("Failed to park finished call", "callID", sessions[i].CallID, "error", err)
		}
	}
}

// expiredLocked times out an invite past its deadline. Caller must hold s.mu.
func (s *CallService) expiredLocked(session *models.CallSession) (models.CallSession, bool) {
	if session.State != models.CallInvited || s.now().Sub(session.InvitedAt) < s.inviteTimeout {
		return models.CallSession{}, false
	}
	return s.finish(session, models.CallTimedOut, 0), true
}

func (s *CallService) timedOut(ctx context.Context, session models.CallSession) {
	s.park(ctx, session)
	slog.Info("Call invite timed out", "callID", session.CallID, "callerID", session.CallerID, "receiverID", session.ReceiverID)
	ev := models.CallStateEvent{CallID: session.CallID, State: models.CallTimedOut, Reason: endReasonTimeout}
	s.notifier.Notify(ctx, Event{Type: websocket.MessageTypeCallEnded, Recipient: session.CallerID, Actor: session.ReceiverID, Data: ev})
	s.notifier.Notify(ctx, Event{Type: websocket.MessageTypeCallEnded, Recipient: session.ReceiverID, Actor: session.CallerID, Data: ev})
}

// requirePair rechecks that both participants of a live call are still
// friends. The store is read without s.mu held.
func (s *CallService) requirePair(ctx context.Context, callID string) error {
	s.mu.Lock()
	session, err := s.lookup(callID)
	var callerID, receiverID uint
	if session != nil {
		callerID, receiverID = session.CallerID, session.ReceiverID
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if session == nil {
		return s.missing(ctx, callID)
	}
	return s.friends.RequireFriends(ctx, callerID, receiverID)
}

// RespondToCall lets the receiver accept or reject an invite once.
func (s *CallService) RespondToCall(ctx context.Context, callID string, actingUserID uint, accept bool) (*models.CallSession, error) {
	if err := s.requirePair(ctx, callID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	session, err := s.lookup(callID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if session == nil {
		s.mu.Unlock()
		return nil, s.missing(ctx, callID)
	}
	if session.ReceiverID != actingUserID {
		s.mu.Unlock()
		return nil, apperrors.Forbidden("only the receiver can answer a call")
	}
	if expired, ok := s.expiredLocked(session); ok {
		s.mu.Unlock()
		s.timedOut(ctx, expired)
		return nil, apperrors.InvalidState("call invite timed out")
	}
	if session.State != models.CallInvited {
		s.mu.Unlock()
		return nil, apperrors.InvalidState("call already " + string(session.State))
	}

	var result models.CallSession
	eventType := websocket.MessageTypeCallRejected
	if accept {
		now := s.now()
		session.State = models.CallAccepted
		session.AnsweredAt = &now
		result = *session
		eventType = websocket.MessageTypeCallAccepted
	} else {
		result = s.finish(session, models.CallRejected, actingUserID)
	}
	s.mu.Unlock()

	if result.State == models.CallRejected {
		s.park(ctx, result)
	}
	slog.Info("Call answered", "callID", callID, "receiverID", actingUserID, "state", result.State)
	s.notifier.Notify(ctx, Event{
		Type:      eventType,
		Recipient: result.CallerID,
		Actor:     actingUserID,
		Data:      models.CallStateEvent{CallID: callID, State: result.State},
	})
	return &result, nil
}

// EndCall hangs up an accepted or active call, or cancels an invite when
// the caller ends it. Ending a finished call returns it unchanged.
func (s *CallService) EndCall(ctx context.Context, callID string, endedBy uint) (*models.CallSession, error) {
	s.mu.Lock()
	session, ok := s.calls[callID]
	if !ok {
		s.mu.Unlock()
		done := s.finishedCall(ctx, callID)
		if done == nil {
			return nil, apperrors.NotFound("call not found")
		}
		if done.Peer(endedBy) == 0 {
			return nil, apperrors.Forbidden("not a participant of this call")
		}
		return done, nil
	}

	peer := session.Peer(endedBy)
	if peer == 0 {
		s.mu.Unlock()
		return nil, apperrors.Forbidden("not a participant of this call")
	}
	if expired, ok := s.expiredLocked(session); ok {
		s.mu.Unlock()
		s.timedOut(ctx, expired)
		return &expired, nil
	}
	if session.State == models.CallInvited && endedBy != session.CallerID {
		s.mu.Unlock()
		return nil, apperrors.InvalidState("reject the invite instead of ending it")
	}
	result := s.finish(session, models.CallEnded, endedBy)
	s.mu.Unlock()

	s.park(ctx, result)
	slog.Info("Call ended", "callID", callID, "endedBy", endedBy)
	s.notifier.Notify(ctx, Event{
		Type:      websocket.MessageTypeCallEnded,
		Recipient: peer,
		Actor:     endedBy,
		Data:      models.CallStateEvent{CallID: callID, State: models.CallEnded, EndedBy: endedBy},
	})
	return &result, nil
}

// RelaySignal forwards an opaque WebRTC payload to the other participant.
// The first relay after accept marks the call active.
func (s *CallService) RelaySignal(ctx context.Context, callID string, fromID, toID uint, payload json.RawMessage) error {
	if len(payload) == 0 {
		return apperrors.InvalidArg("signal payload is required")
	}
	if err := s.requirePair(ctx, callID); err != nil {
		return err
	}

	s.mu.Lock()
	session, err := s.lookup(callID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if session == nil {
		s.mu.Unlock()
		return s.missing(ctx, callID)
	}
	peer := session.Peer(fromID)
	if peer == 0 || (toID != 0 && toID != peer) {
		s.mu.Unlock()
		return apperrors.Forbidden("signal must go between call participants")
	}
	if expired, ok := s.expiredLocked(session); ok {
		s.mu.Unlock()
		s.timedOut(ctx, expired)
		return apperrors.InvalidState("call invite timed out")
	}
	if session.State == models.CallAccepted {
		session.State = models.CallActive
		slog.Debug("Call active", "callID", callID)
	}
	s.mu.Unlock()

	delivered := s.notifier.Notify(ctx, Event{
		Type:      websocket.MessageTypeCallSignal,
		Recipient: peer,
		Actor:     fromID,
		Data:      models.CallSignalEvent{CallID: callID, From: fromID, Signal: payload},
	})
	if !delivered {
		return apperrors.PeerUnreachable("peer is offline")
	}
	return nil
}

// SweepExpired times out stale invites, forgets old tombstones and
// returns how many invites it closed.
func (s *CallService) SweepExpired(ctx context.Context) int {
	s.mu.Lock()
	var expired []models.CallSession
	for _, session := range s.calls {
		if done, ok := s.expiredLocked(session); ok {
			expired = append(expired, done)
		}
	}
	now := s.now()
	for id, t := range s.ended {
		if now.After(t.until) {
			delete(s.ended, id)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		s.timedOut(ctx, session)
	}
	return len(expired)
}

// EndAllFor hangs up every live call of a user whose last connection dropped.
func (s *CallService) EndAllFor(ctx context.Context, userID uint) int {
	s.mu.Lock()
	var ended []models.CallSession
	for _, session := range s.calls {
		if session.Peer(userID) != 0 {
			ended = append(ended, s.finish(session, models.CallEnded, userID))
		}
	}
	s.mu.Unlock()

	s.park(ctx, ended...)
	for _, session := range ended {
		s.notifier.Notify(ctx, Event{
			Type:      websocket.MessageTypeCallEnded,
			Recipient: session.Peer(userID),
			Actor:     userID,
			Data: models.CallStateEvent{
				CallID:  session.CallID,
				State:   models.CallEnded,
				EndedBy: userID,
				Reason:  endReasonDisconnected,
			},
		})
	}
	return len(ended)
}

// EndAllBetween hangs up every live call between a and b once they stop
// being friends. Both sides are told, a counts as the one who ended it.
func (s *CallService) EndAllBetween(ctx context.Context, a, b uint) int {
	s.mu.Lock()
	var ended []models.CallSession
	for _, session := range s.calls {
		if session.Peer(a) == b {
			ended = append(ended, s.finish(session, models.CallEnded, a))
		}
	}
	s.mu.Unlock()

	s.park(ctx, ended...)
	for _, session := range ended {
		ev := models.CallStateEvent{CallID: session.CallID, State: models.CallEnded, EndedBy: a, Reason: endReasonUnfriended}
		s.notifier.Notify(ctx, Event{Type: websocket.MessageTypeCallEnded, Recipient: b, Actor: a, Data: ev})
		s.notifier.Notify(ctx, Event{Type: websocket.MessageTypeCallEnded, Recipient: a, Actor: b, Data: ev})
	}
	return len(ended)
}

// Get returns a copy of the session if userID takes part in it.
func (s *CallService) Get(ctx context.Context, callID string, userID uint) (*models.CallSession, error) {
	s.mu.Lock()
	session, ok := s.calls[callID]
	var snapshot models.CallSession
	if ok {
		snapshot = *session
	}
	s.mu.Unlock()

	if !ok {
		done := s.finishedCall(ctx, callID)
		if done == nil {
			return nil, apperrors.NotFound("call not found")
		}
		snapshot = *done
	}
	if snapshot.Peer(userID) == 0 {
		return nil, apperrors.Forbidden("not a participant of this call")
	}
	return &snapshot, nil
}

func (s *CallService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (s *CallService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.SweepExpired(ctx); n > 0 {
				slog.Debug("Swept expired call invites", "count", n)
			}
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				slog.Warn("Call sweeper stopped", "error", ctx.Err())
			}
			return
		}
	}
}
