package chatauth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// ConversationRef is the minimal set of identifiers needed to address and
// resume a suspended conversation. Stored as JSON in the correlation store.
type ConversationRef struct {
	MessageID      string `json:"messageId,omitempty"`
	ChannelID      string `json:"channelId"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName,omitempty"`
	RecipientID    string `json:"recipientId,omitempty"`
	ConversationID string `json:"conversationId"`
	ServiceURL     string `json:"serviceUrl,omitempty"`
}

// Message is one inbound conversational turn as seen by the dialog.
type Message struct {
	ID             string
	ChannelID      string
	ConversationID string
	UserID         string
	UserName       string
	RecipientID    string
	ServiceURL     string
	Text           string
}

// Ref builds the conversation locator for the message.
func (m *Message) Ref() *ConversationRef {
	if m == nil {
		return nil
	}
	return &ConversationRef{
		MessageID:      m.ID,
		ChannelID:      m.ChannelID,
		UserID:         m.UserID,
		UserName:       m.UserName,
		RecipientID:    m.RecipientID,
		ConversationID: m.ConversationID,
		ServiceURL:     m.ServiceURL,
	}
}

// Message reconstructs an inbound-shaped message from the locator. Used by the
// callback handler to resume a dialog that has no live turn.
func (r *ConversationRef) Message() *Message {
	if r == nil {
		return nil
	}
	return &Message{
		ID:             r.MessageID,
		ChannelID:      r.ChannelID,
		ConversationID: r.ConversationID,
		UserID:         r.UserID,
		UserName:       r.UserName,
		RecipientID:    r.RecipientID,
		ServiceURL:     r.ServiceURL,
	}
}

// Reply is an outbound message handed to the [Connector]. Either Text or
// Attachments is set; channel-specific rendering happens in the connector.
type Reply struct {
	Ref         *ConversationRef
	Text        string
	Attachments []Attachment
}

// CardActionType selects how a channel presents a login button.
type CardActionType string

const (
	// ActionSignin is the native sign-in card action.
	ActionSignin CardActionType = "signin"
	// ActionOpenURL is the fallback for channels without sign-in cards.
	ActionOpenURL CardActionType = "openUrl"
)

// CardAction is a single button on a login card.
type CardAction struct {
	Title string
	Value string
	Type  CardActionType
}

// Attachment is a channel-agnostic rich card.
type Attachment struct {
	ContentType string
	Title       string
	Subtitle    string
	Actions     []CardAction
}

// AuthResult is the credential produced by a successful code exchange. The
// core treats it as an opaque blob apart from the display name.
type AuthResult struct {
	UserName    string `json:"userName,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
	IDToken     string `json:"idToken,omitempty"`
	ExpiresAt   int64  `json:"expiresAt,omitempty"`
}

// DisplayName returns UserName when set, otherwise falls back to the name
/// claim of the ID token. The token is parsed without signature verification:
// it was obtained over the provider's TLS channel and is only used for a
// greeting, never for an authorization decision.
func (r *AuthResult) DisplayName() string {
	if r == nil {
		return ""
	}
	if r.UserName != "" {
		return r.UserName
	}
	if r.IDToken == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(r.IDToken, claims); err != nil {
		return ""
	}
	for _, key := range []string{"name", "preferred_username", "email"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// TokenRequest names what the credential should be good for. V1 providers use
// Resource, V2 providers use Scopes.
type TokenRequest struct {
	Resource string
	Scopes   []string
}

// IdentityProvider is the external collaborator performing the OAuth legs the
/// core does not own: code exchange, authorization-URL minting, and token
// cache lookup.
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (*AuthResult, error)
	AuthURL(ctx context.Context, correlationID string, req TokenRequest) (string, error)
	CachedToken(ctx context.Context, channelID, userID string, req TokenRequest) (string, error)
}

// Connector delivers replies into a conversation and re-enters a suspended
// dialog. Implementations wrap the channel transport.
type Connector interface {
	Send(ctx context.Context, reply *Reply) error
	Resume(ctx context.Context, ref *ConversationRef, msg *Message) error
}
