package relay

import (
	"net/http"
	"time"

	"mmhook/internal/mattermost"
	"mmhook/internal/types"
)

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	// Webhook reports whether a destination is configured for POST /v1/messages.
	Webhook bool `json:"webhook_configured"`
}

// sendResponse is the body of an accepted POST /v1/messages.
type sendResponse struct {
	RequestID      string `json:"request_id"`
	UpstreamStatus int    `json:"upstream_status"`
	DurationMS     int64  `json:"duration_ms"`
}

// HandleHealth reports liveness. It never calls Mattermost.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: s.Config.Build.Version,
		Webhook: !s.Config.Mattermost.WebhookURL.IsZero(),
	})
}

// HandlePreview validates the posted message and returns the exact JSON
// payload that would be sent to the webhook.
func (s *Server) HandlePreview(w http.ResponseWriter, r *http.Request) {
	msg, err := s.decodeMessage(w, r)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, msg)
}

// HandleSend validates the posted message and delivers it to the configured
// webhook. The upstream outcome decides the response: 202 when Mattermost
// accepted the post, 4xx/5xx envelopes otherwise.
func (s *Server) HandleSend(w http.ResponseWriter, r *http.Request) {
	logger := types.LoggerFromContext(r.Context())

	msg, err := s.decodeMessage(w, r)
	if err != nil {
		Error(w, r, err)
		return
	}

	destination, err := s.Config.Mattermost.Destination()
	if err != nil {
		logger.Error("relay has no webhook configured", "error", err)
		Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "relay has no webhook URL configured", err))
		return
	}

	res, err := s.Sender.Send(r.Context(), destination, msg)
	if s.Metrics != nil {
		var d time.Duration
		if res != nil {
			d = res.Duration
		}
		s.Metrics.RecordDelivery(d, err)
	}
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusAccepted, sendResponse{
		RequestID:      res.RequestID,
		UpstreamStatus: res.StatusCode,
		DurationMS:     res.Duration.Milliseconds(),
	})
}

// decodeMessage turns the request body into a validated Message with the
// configured username, channel and icon applied where the body left them unset.
func (s *Server) decodeMessage(w http.ResponseWriter, r *http.Request) (mattermost.Message, error) {
	doc, err := DecodeObject(w, r)
	if err != nil {
		return mattermost.Message{}, err
	}

	msg, err := mattermost.FromMap(doc)
	if err != nil {
		return mattermost.Message{}, err
	}

	mm := s.Config.Mattermost
	return msg.WithDefaults(mm.Username, mm.Channel, mm.IconURL)
}
