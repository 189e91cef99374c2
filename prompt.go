package chatauth

// PromptRenderer turns a login-prompt request into a channel-appropriate
// reply. The default implementation dispatches on channel id; custom
// renderers replace it wholesale through [Builder.WithPromptRenderer] rather
// than by subclassing.
type PromptRenderer interface {
	RenderLoginPrompt(msg *Message, prompt, authURL string) *Reply
}

type promptStyle int

const (
	// stylePlainLink is a markdown link for channels without card support.
	stylePlainLink promptStyle = iota
	// styleSigninCard is a native sign-in card.
	styleSigninCard
	// styleThumbnailCard is a generic card with an openUrl button, for
	// channels that render cards but not sign-in actions.
	styleThumbnailCard
)

// CardPromptRenderer is the default renderer: a dispatch table from channel
// id to card style. Unknown channels get a sign-in card.
type CardPromptRenderer struct {
	styles map[string]promptStyle
}

// NewCardPromptRenderer builds the default channel dispatch table.
func NewCardPromptRenderer() *CardPromptRenderer {
	return &CardPromptRenderer{
		styles: map[string]promptStyle{
			"skypeforbusiness": stylePlainLink,
			"emulator":         styleSigninCard,
			"skype":            styleSigninCard,
			// Teams renders cards but has no signin action.
			"msteams": styleThumbnailCard,
		},
	}
}

// WithChannelStyle overrides or extends the dispatch table for one channel.
// Returns the receiver for chaining during setup; not safe to call after the
// renderer is in use.
func (r *CardPromptRenderer) WithChannelStyle(channelID string, style CardActionType) *CardPromptRenderer {
	if r.styles == nil {
		r.styles = map[string]promptStyle{}
	}
	switch style {
	case ActionOpenURL:
		r.styles[channelID] = styleThumbnailCard
	default:
		r.styles[channelID] = styleSigninCard
	}
	return r
}

// RenderLoginPrompt implements [PromptRenderer].
func (r *CardPromptRenderer) RenderLoginPrompt(msg *Message, prompt, authURL string) *Reply {
	style, ok := r.styles[msg.ChannelID]
	if !ok {
		style = styleSigninCard
	}

	reply := &Reply{Ref: msg.Ref()}

	switch style {
	case stylePlainLink:
		reply.Text = prompt + " [Click here](" + authURL + ")"
	case styleThumbnailCard:
		reply.Attachments = []Attachment{{
			ContentType: "application/vnd.card.thumbnail",
			Title:       prompt,
			Actions: []CardAction{{
				Title: "Authentication Required",
				Value: authURL,
				Type:  ActionOpenURL,
			}},
		}}
	default:
		reply.Attachments = []Attachment{{
			ContentType: "application/vnd.card.signin",
			Title:       prompt,
			Actions: []CardAction{{
				Title: "Authentication Required",
				Value: authURL,
				Type:  ActionSignin,
			}},
		}}
	}

	return reply
}
