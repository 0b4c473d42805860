package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/auth"
	"github.com/parley-chat/parley-server/internal/metrics"
	"github.com/parley-chat/parley-server/internal/store"
)

// Audience selects which connections receive a broadcast.
type Audience int

const (
	// AudienceAll delivers to every open connection.
	AudienceAll Audience = iota
	// AudienceAllExcept delivers to every open connection but one.
	AudienceAllExcept
	// AudienceAdmins delivers to connections bound to an admin identity.
	AudienceAdmins
	// AudienceDirect delivers to a single connection.
	AudienceDirect
)

// Options configures a Hub.
type Options struct {
	AdminName         string
	AdminPasswordHash string
	Tokens            *auth.TokenConfig
	Store             store.Store
	Logger            *zerolog.Logger
	Metrics           *metrics.Metrics
}

// Hub owns all session state: the roster of connected identities, the ban
// set, the message log, and the feature-request queue. A single goroutine
// (Run) consumes registrations, disconnects, and commands, so every state
// mutation and every fan-out happens one event at a time, with no locks.
type Hub struct {
	adminName   string
	adminDigest string
	tokens      *auth.TokenConfig
	store       store.Store
	log         *zerolog.Logger
	metrics     *metrics.Metrics

	commands chan Command
	done     chan struct{} // closed when Run returns

	clients map[*Client]struct{}
	roster  map[string]*Client // identity id -> bound client
}

// NewHub constructs a hub. Logger and Metrics may be nil.
func NewHub(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Hub{
		adminName:   opts.AdminName,
		adminDigest: opts.AdminPasswordHash,
		tokens:      opts.Tokens,
		store:       opts.Store,
		log:         logger,
		metrics:     opts.Metrics,
		commands:    make(chan Command, 64),
		done:        make(chan struct{}),
		clients:     make(map[*Client]struct{}),
		roster:      make(map[string]*Client),
	}
}

// Register adds a connection to the hub. Registration flows through the
// same channel as commands, so a command submitted after Register is always
// processed after it.
func (h *Hub) Register(c *Client) {
	h.Submit(Command{Kind: commandRegister, Client: c})
}

// Unregister removes a connection from the hub. Safe to call after the hub
// already force-closed the client.
func (h *Hub) Unregister(c *Client) {
	h.Submit(Command{Kind: commandUnregister, Client: c})
}

// Submit queues a command for processing. After Run returns, commands are
// discarded instead of blocking the sender.
func (h *Hub) Submit(cmd Command) {
	select {
	case h.commands <- cmd:
	case <-h.done:
	}
}

// Run processes hub events until the context is cancelled. It must be
// called exactly once, in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.closeClient(c)
			}
			return

		case cmd := <-h.commands:
			h.handleCommand(ctx, cmd)
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, cmd Command) {
	c := cmd.Client
	if c == nil {
		return
	}

	switch cmd.Kind {
	case commandRegister:
		h.clients[c] = struct{}{}
		if h.metrics != nil {
			h.metrics.ActiveConnections.Inc()
		}
		h.log.Debug().Str("conn_id", c.ID).Int("connections", len(h.clients)).Msg("connection registered")
		return
	case commandUnregister:
		h.handleDisconnect(ctx, c)
		return
	}

	if c.closed {
		return
	}

	if gateErr := Permitted(cmd.Kind, c.identity); gateErr != nil {
		h.deliver(AudienceDirect, &Event{Kind: EventAlert, Alert: gateErr}, c)
		return
	}

	switch cmd.Kind {
	case CommandJoin:
		h.handleJoin(ctx, c, cmd)
	case CommandChatMessage:
		h.handleChatMessage(ctx, c, cmd.Text, false)
	case CommandAdminMessage:
		h.handleChatMessage(ctx, c, cmd.Text, true)
	case CommandBanUser:
		h.handleBanUser(ctx, c, cmd.TargetID)
	case CommandUnbanUser:
		h.handleUnbanUser(ctx, c, cmd.TargetID)
	case CommandClearChat:
		h.handleClearChat(ctx, c)
	case CommandFeatureRequest:
		h.handleFeatureRequest(ctx, c, cmd.Text)
	case CommandDeleteFeatureRequest:
		h.handleDeleteFeatureRequest(ctx, c, cmd.TargetID)
	}
}

// handleJoin runs the ban check, name-uniqueness check, and credential
// check as one step. Because the whole join executes inside the hub
// goroutine, a second join for the same name cannot interleave with a
// pending credential check.
func (h *Hub) handleJoin(ctx context.Context, c *Client, cmd Command) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		h.deliver(AudienceDirect, &Event{
			Kind:  EventAlert,
			Alert: sessionError(ErrCodeBadRequest, "user name is required"),
		}, c)
		return
	}

	banned, err := h.store.IsBannedName(ctx, name)
	if err != nil {
		h.failInternal(c, "check ban", err)
		return
	}
	if banned {
		h.deliver(AudienceDirect, &Event{Kind: EventConnectionDenied, Reason: "banned"}, c)
		h.closeClient(c)
		h.log.Info().Str("name", name).Msg("join refused, name is banned")
		return
	}

	for _, other := range h.roster {
		if other.identity.Name == name {
			h.deliver(AudienceDirect, &Event{
				Kind:  EventAlert,
				Alert: sessionError(ErrCodeNameTaken, "name taken"),
			}, c)
			return
		}
	}

	role := RoleRegular
	token := ""
	if name == h.adminName {
		if !h.verifyAdmin(cmd.Password, cmd.Token) {
			h.deliver(AudienceDirect, &Event{Kind: EventConnectionDenied, Reason: "incorrect admin password"}, c)
			h.closeClient(c)
			h.log.Info().Str("name", name).Msg("join refused, admin credential check failed")
			return
		}
		role = RoleAdmin
		if h.tokens != nil {
			if token, err = auth.IssueResumeToken(h.tokens, name); err != nil {
				h.log.Warn().Err(err).Msg("failed to issue resume token")
				token = ""
			}
		}
	}

	identity := &Identity{ID: uuid.NewString(), Name: name, Role: role}
	c.identity = identity
	h.roster[identity.ID] = c

	// Replay must reach the new client before any live broadcast; both go
	// through the same per-client channel, so queueing order is delivery
	// order.
	h.deliver(AudienceDirect, &Event{Kind: EventJoinSuccess, Identity: identity, Token: token}, c)

	history, err := h.store.ListMessages(ctx)
	if err != nil {
		h.failInternal(c, "list messages", err)
	} else {
		h.deliver(AudienceDirect, &Event{Kind: EventHistory, Messages: toMessages(history)}, c)
	}

	if role == RoleAdmin {
		h.sendFeatureRequests(ctx, AudienceDirect, c)
	}

	h.broadcastUserLists(ctx, AudienceAll, nil)

	if h.metrics != nil {
		h.metrics.JoinsTotal.WithLabelValues(role.String()).Inc()
	}
	h.log.Info().Str("name", name).Str("role", role.String()).Msg("user joined")
}

// verifyAdmin accepts either the configured admin secret or a previously
// issued resume token.
func (h *Hub) verifyAdmin(password, token string) bool {
	if token != "" && h.tokens != nil {
		claims, err := auth.ValidateResumeToken(h.tokens, token)
		return err == nil && claims.Name == h.adminName
	}
	if h.adminDigest == "" {
		return false
	}
	return auth.ComparePassword(h.adminDigest, password) == nil
}

func (h *Hub) handleChatMessage(ctx context.Context, c *Client, text string, asAdmin bool) {
	if strings.TrimSpace(text) == "" {
		h.deliver(AudienceDirect, &Event{
			Kind:  EventAlert,
			Alert: sessionError(ErrCodeBadRequest, "message text is required"),
		}, c)
		return
	}

	msg := store.Message{
		Author:        c.identity.Name,
		AuthorIsAdmin: asAdmin,
		Body:          text,
		CreatedAt:     time.Now(),
	}
	if _, err := h.store.AppendMessage(ctx, msg); err != nil {
		h.failInternal(c, "append message", err)
		return
	}

	// The sender is part of the audience; there is no separate local echo.
	h.deliver(AudienceAll, &Event{
		Kind: EventNewMessage,
		Message: Message{
			Author:        msg.Author,
			AuthorIsAdmin: msg.AuthorIsAdmin,
			Text:          msg.Body,
			CreatedAt:     msg.CreatedAt,
		},
	}, nil)

	if h.metrics != nil {
		h.metrics.MessagesTotal.Inc()
	}
}

func (h *Hub) handleBanUser(ctx context.Context, c *Client, targetID string) {
	target, ok := h.roster[targetID]
	if !ok {
		h.deliver(AudienceDirect, &Event{
			Kind:  EventAlert,
			Alert: sessionError(ErrCodeNotFound, "user not found"),
		}, c)
		return
	}

	identity := target.identity
	rec := store.BanRecord{UserID: identity.ID, Username: identity.Name, CreatedAt: time.Now()}
	if err := h.store.AddBan(ctx, rec); err != nil {
		h.failInternal(c, "add ban", err)
		return
	}

	delete(h.roster, identity.ID)

	h.deliver(AudienceDirect, &Event{Kind: EventBannedNotice, Reason: "banned by administrator"}, target)
	h.closeClient(target)

	h.broadcastUserLists(ctx, AudienceAllExcept, target)

	if h.metrics != nil {
		h.metrics.BansTotal.Inc()
	}
	h.log.Info().Str("name", identity.Name).Str("by", c.identity.Name).Msg("user banned")
}

func (h *Hub) handleUnbanUser(ctx context.Context, c *Client, targetID string) {
	removed, err := h.store.RemoveBan(ctx, targetID)
	if err != nil {
		h.failInternal(c, "remove ban", err)
		return
	}
	if !removed {
		h.deliver(AudienceDirect, &Event{
			Kind:  EventAlert,
			Alert: sessionError(ErrCodeNotFound, "ban not found"),
		}, c)
		return
	}

	h.broadcastUserLists(ctx, AudienceAll, nil)
	h.log.Info().Str("user_id", targetID).Str("by", c.identity.Name).Msg("user unbanned")
}

func (h *Hub) handleClearChat(ctx context.Context, c *Client) {
	if err := h.store.ClearMessages(ctx); err != nil {
		h.failInternal(c, "clear messages", err)
		return
	}

	// An empty history frame doubles as the client-side reset signal.
	h.deliver(AudienceAll, &Event{Kind: EventHistory, Messages: []Message{}}, nil)
	h.log.Info().Str("by", c.identity.Name).Msg("chat history cleared")
}

func (h *Hub) handleFeatureRequest(ctx context.Context, c *Client, text string) {
	if strings.TrimSpace(text) == "" {
		h.deliver(AudienceDirect, &Event{
			Kind:  EventAlert,
			Alert: sessionError(ErrCodeBadRequest, "request text is required"),
		}, c)
		return
	}

	req := store.FeatureRequest{
		ID:        uuid.NewString(),
		AuthorID:  c.identity.ID,
		Author:    c.identity.Name,
		Body:      text,
		CreatedAt: time.Now(),
	}
	if err := h.store.AddFeatureRequest(ctx, req); err != nil {
		h.failInternal(c, "add feature request", err)
		return
	}

	h.sendFeatureRequests(ctx, AudienceAdmins, nil)
}

func (h *Hub) handleDeleteFeatureRequest(ctx context.Context, c *Client, requestID string) {
	removed, err := h.store.DeleteFeatureRequest(ctx, requestID)
	if err != nil {
		h.failInternal(c, "delete feature request", err)
		return
	}
	if !removed {
		h.deliver(AudienceDirect, &Event{
			Kind:  EventAlert,
			Alert: sessionError(ErrCodeNotFound, "feature request not found"),
		}, c)
		return
	}

	h.sendFeatureRequests(ctx, AudienceAdmins, nil)
}

// handleDisconnect releases a connection. A connection that never joined
// leaves no trace; a bound one is removed from the roster and the updated
// lists are broadcast.
func (h *Hub) handleDisconnect(ctx context.Context, c *Client) {
	if c.closed {
		return
	}
	h.closeClient(c)

	if c.identity == nil {
		return
	}
	h.log.Info().Str("name", c.identity.Name).Msg("user left")
	h.broadcastUserLists(ctx, AudienceAll, nil)
}

// closeClient marks the client closed and closes its event channel, which
// lets the transport flush queued frames and then shut the connection.
// Idempotent; only the hub goroutine may call it.
func (h *Hub) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.Events)
	delete(h.clients, c)
	if c.identity != nil {
		delete(h.roster, c.identity.ID)
	}
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
}

// deliver fans an event out to the selected audience. Delivery is
// fire-and-forget: closed clients are skipped, and a client whose buffer is
// full drops the event rather than blocking the hub.
func (h *Hub) deliver(aud Audience, event *Event, target *Client) {
	switch aud {
	case AudienceDirect:
		h.send(target, event)
	case AudienceAll:
		for c := range h.clients {
			h.send(c, event)
		}
	case AudienceAllExcept:
		for c := range h.clients {
			if c != target {
				h.send(c, event)
			}
		}
	case AudienceAdmins:
		for c := range h.clients {
			if c.identity != nil && c.identity.Role == RoleAdmin {
				h.send(c, event)
			}
		}
	}
}

func (h *Hub) send(c *Client, event *Event) {
	if c == nil || c.closed {
		return
	}
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer.
		h.log.Warn().Str("conn_id", c.ID).Msg("event dropped, client buffer full")
	}
}

func (h *Hub) broadcastUserLists(ctx context.Context, aud Audience, except *Client) {
	users := make([]RosterEntry, 0, len(h.roster))
	for _, c := range h.roster {
		users = append(users, RosterEntry{
			ID:    c.identity.ID,
			Name:  c.identity.Name,
			Admin: c.identity.Role == RoleAdmin,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })

	records, err := h.store.ListBans(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list bans")
		records = nil
	}
	bans := make([]Ban, 0, len(records))
	for _, rec := range records {
		bans = append(bans, Ban{ID: rec.UserID, Name: rec.Username})
	}

	h.deliver(aud, &Event{Kind: EventUserLists, Users: users, Bans: bans}, except)
}

func (h *Hub) sendFeatureRequests(ctx context.Context, aud Audience, target *Client) {
	records, err := h.store.ListFeatureRequests(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list feature requests")
		return
	}

	requests := make([]FeatureRequest, 0, len(records))
	for _, rec := range records {
		requests = append(requests, FeatureRequest{
			ID:        rec.ID,
			Author:    rec.Author,
			Text:      rec.Body,
			CreatedAt: rec.CreatedAt,
		})
	}

	h.deliver(aud, &Event{Kind: EventFeatureRequests, Requests: requests}, target)
}

// failInternal logs a storage failure and alerts only the caller. One
// connection's failure must never take the server down.
func (h *Hub) failInternal(c *Client, op string, err error) {
	h.log.Error().Err(err).Str("op", op).Msg("session operation failed")
	h.deliver(AudienceDirect, &Event{
		Kind:  EventAlert,
		Alert: sessionError(ErrCodeInternal, "internal error"),
	}, c)
}

func toMessages(records []store.Message) []Message {
	messages := make([]Message, 0, len(records))
	for _, rec := range records {
		messages = append(messages, Message{
			Author:        rec.Author,
			AuthorIsAdmin: rec.AuthorIsAdmin,
			Text:          rec.Body,
			CreatedAt:     rec.CreatedAt,
		})
	}
	return messages
}
