package chatauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/MrEthical07/chatauth/internal/rate"
	"github.com/MrEthical07/chatauth/session"
)

// CallbackHandler returns the HTTP handler for the identity provider's
// redirect. GET with code and state query parameters resumes a suspended
// login; the parameterless variant returns a bare 200 and serves as a
// sign-out landing page. The handler is stateless: every invocation stands
// alone and any failure is converted into a client-error page rather than a
// crash, because arbitrary external actors can hit this endpoint.
func (e *Engine) CallbackHandler() http.Handler {
	return &callbackHandler{engine: e}
}

type callbackHandler struct {
	engine *Engine
}

func (h *callbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e := h.engine
	start := time.Now()
	defer func() {
		e.metricObserve(MetricCallbackLatency, time.Since(start))
	}()

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	// Sign-out landing: the provider redirects here with no parameters.
	if code == "" && state == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if code == "" || state == "" {
		renderErrorPage(w, http.StatusBadRequest, "missing code or state parameter")
		return
	}

	ctx := r.Context()

	if err := e.throttle.CheckCallback(ctx, r.RemoteAddr); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			err = fmt.Errorf("%w: %v", ErrCallbackThrottled, err)
		}
		e.metricInc(MetricCallbackThrottled)
		e.auditEmit(ctx, AuditEvent{
			EventType:     AuditCallbackThrottled,
			CorrelationID: state,
			Error:         err.Error(),
		})
		if errors.Is(err, ErrCallbackThrottled) {
			renderErrorPage(w, http.StatusTooManyRequests, "too many authentication attempts, slow down")
			return
		}
		renderErrorPage(w, http.StatusBadRequest, err.Error())
		return
	}

	// Authorization codes are single-use: the exchange happens exactly once
	// and a rejection terminates this callback.
	authResult, err := e.provider.ExchangeCode(ctx, code)
	if err != nil {
		e.metricInc(MetricCallbackExchangeFailed)
		e.auditEmit(ctx, AuditEvent{
			EventType:     AuditCallbackExchangeFail,
			CorrelationID: state,
			Error:         err.Error(),
		})
		renderErrorPage(w, http.StatusBadRequest, fmt.Sprintf("%v: %v", ErrAuthExchangeFailed, err))
		return
	}

	ref, err := e.correlations.Get(ctx, state)
	if err != nil {
		// The conversation has no memory of this login; nothing to resume
		// and nothing was written anywhere.
		e.metricInc(MetricCallbackUnknownState)
		e.auditEmit(ctx, AuditEvent{
			EventType:     AuditCallbackUnknownState,
			CorrelationID: state,
			Error:         err.Error(),
		})
		renderErrorPage(w, http.StatusBadRequest, err.Error())
		return
	}

	// The magic number is generated only after a successful exchange: it is
	// bound to this credential and must never exist before the credential.
	magicNumber := ""
	if e.config.MagicNumber.Enabled {
		magicNumber, err = e.magic.Generate()
		if err != nil {
			renderErrorPage(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	credential, err := json.Marshal(authResult)
	if err != nil {
		renderErrorPage(w, http.StatusBadRequest, err.Error())
		return
	}

	writeErr := e.applyState(ctx, ref.ChannelID, ref.UserID, func(s *session.State) error {
		s.Credential = credential
		if e.config.MagicNumber.Enabled {
			s.MagicNumber = magicNumber
			s.Challenge = session.ChallengePending
		}
		return nil
	})
	writeOK := writeErr == nil
	if !writeOK {
		e.auditEmit(ctx, AuditEvent{
			EventType:      AuditSessionWriteFailed,
			ChannelID:      ref.ChannelID,
			UserID:         ref.UserID,
			ConversationID: ref.ConversationID,
			CorrelationID:  state,
			Error:          writeErr.Error(),
		})
	} else if e.config.MagicNumber.Enabled {
		e.metricInc(MetricMagicNumberIssued)
		e.auditEmit(ctx, AuditEvent{
			EventType:      AuditMagicIssued,
			ChannelID:      ref.ChannelID,
			UserID:         ref.UserID,
			ConversationID: ref.ConversationID,
			CorrelationID:  state,
			Success:        true,
		})
	}

	// The chat reply goes out before deletion and resumption so the user
	// always sees a human-readable outcome, whatever happens next.
	reply := &Reply{Ref: ref}
	switch {
	case !writeOK:
		reply.Text = "Could not log you in at this time, please try again later."
	case e.config.MagicNumber.Enabled:
		reply.Text = "Please paste back the number you received in your authentication screen."
	default:
		reply.Text = fmt.Sprintf("Thank you %s, you are now logged in.", authResult.DisplayName())
	}
	if err := e.connector.Send(ctx, reply); err != nil {
		renderErrorPage(w, http.StatusBadRequest, err.Error())
		return
	}

	if writeOK && !e.config.MagicNumber.Enabled {
		// Deletion precedes resumption; on write failure the entry is kept
		// on purpose so the flow loses no information.
		if err := e.correlations.Delete(ctx, state); err != nil {
			renderErrorPage(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := e.connector.Resume(ctx, ref, ref.Message()); err != nil {
			renderErrorPage(w, http.StatusBadRequest, err.Error())
			return
		}
		e.metricInc(MetricDialogResumed)
		e.auditEmit(ctx, AuditEvent{
			EventType:      AuditDialogResumed,
			ChannelID:      ref.ChannelID,
			UserID:         ref.UserID,
			ConversationID: ref.ConversationID,
			CorrelationID:  state,
			Success:        true,
		})
	}

	if writeOK {
		e.metricInc(MetricCallbackSuccess)
		e.auditEmit(ctx, AuditEvent{
			EventType:      AuditCallbackCompleted,
			ChannelID:      ref.ChannelID,
			UserID:         ref.UserID,
			ConversationID: ref.ConversationID,
			CorrelationID:  state,
			Success:        true,
		})
	}

	switch {
	case !writeOK:
		renderOutcomePage(w, "Could not log you in at this time, please try again later")
	case e.config.MagicNumber.Enabled:
		// Emphasis is dropped for channels whose clients mangle block markup.
		if ref.ChannelID == "skypeforbusiness" {
			renderOutcomePage(w, fmt.Sprintf(
				"Almost done! Please copy this number and paste it back to your chat so your authentication can complete:<br/> %s",
				magicNumber))
		} else {
			renderOutcomePage(w, fmt.Sprintf(
				"Almost done! Please copy this number and paste it back to your chat so your authentication can complete:<br/> <h1>%s</h1>",
				magicNumber))
		}
	default:
		renderOutcomePage(w, "You have successfully been authenticated and can now continue talking to your bot.")
	}
}

// setSecurityHeaders hardens the HTML responses served to the browser.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

func renderOutcomePage(w http.ResponseWriter, body string) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<html><body>%s</body></html>", body)
}

func renderErrorPage(w http.ResponseWriter, status int, detail string) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<html><body>Authentication failed: %s</body></html>", html.EscapeString(detail))
}
