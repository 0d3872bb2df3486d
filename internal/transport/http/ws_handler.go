package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"alpharia-assessment/internal/app"
	"alpharia-assessment/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.AssessmentService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AssessmentService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type itemPayload struct {
	ItemID string `json:"itemId"`
}

type sectionPayload struct {
	Section string `json:"section" validate:"required"`
}

type reshufflePayload struct {
	Section string `json:"section"`
}

type transcriptPayload struct {
	Transcript string `json:"transcript"`
}

type recognitionResultPayload struct {
	Transcript string `json:"transcript"`
	Error      string `json:"error"`
	// Unavailable reports that the client has no speech engine.
	Unavailable bool `json:"unavailable"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var validate = validator.New()

// ServeWS upgrades HTTP requests to websockets and wires them into the assessment use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	if _, err := h.service.Session(sessionID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toPayload(err)})
		return
	}
	defer cancel()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	var recognitions sync.WaitGroup

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "session", sessionID, "error", err)
				for range send {
				}
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				push(outboundMessage[any]{Type: "snapshot", Payload: update})
			case <-closeSignals:
				return
			}
		}
	}()

	c := &wsClient{
		handler:   h,
		sessionID: sessionID,
		ctx:       ctx,
		push:      push,
		wg:        &recognitions,
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := c.handle(inbound); err != nil {
			if domain.IsRecoverable(err) {
				push(outboundMessage[any]{Type: "toast", Payload: toPayload(err)})
				continue
			}
			push(outboundMessage[any]{Type: "error", Payload: toPayload(err)})
			break
		}
	}

	stop()
	close(closeSignals)
	recognitions.Wait()
	<-updatesDone
	close(send)
	<-writerDone
}

// wsClient holds the per-connection state of one websocket.
type wsClient struct {
	handler   *WSHandler
	sessionID string
	ctx       context.Context
	push      func(outboundMessage[any])
	wg        *sync.WaitGroup

	mu      sync.Mutex
	pending *app.ChannelRecognizer
}

func (c *wsClient) handle(in inboundMessage) error {
	if in.Type == "startRecognition" {
		c.startRecognition()
		return nil
	}
	if in.Type == "recognitionResult" {
		var p recognitionResultPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return c.deliver(p)
	}

	cmd, err := parseCommand(in)
	if err != nil {
		return err
	}
	_, err = c.handler.service.Dispatch(c.ctx, c.sessionID, cmd)
	return err
}

// startRecognition runs a speech request that waits for a later recognitionResult.
func (c *wsClient) startRecognition() {
	rec := app.NewChannelRecognizer()
	c.mu.Lock()
	c.pending = rec
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_, err := c.handler.service.Recognize(c.ctx, c.sessionID, rec)

		c.mu.Lock()
		if c.pending == rec {
			c.pending = nil
		}
		c.mu.Unlock()

		if err != nil && !errors.Is(err, domain.ErrRecognitionAborted) {
			c.push(outboundMessage[any]{Type: "toast", Payload: toPayload(err)})
		}
	}()
}

func (c *wsClient) deliver(p recognitionResultPayload) error {
	c.mu.Lock()
	rec := c.pending
	c.mu.Unlock()
	if rec == nil {
		return domain.ErrRecognitionAborted
	}
	var err error
	switch {
	case p.Unavailable:
		err = domain.ErrRecognitionUnavailable
	case p.Error != "":
		err = errors.New(p.Error)
	}
	rec.Deliver(p.Transcript, err)
	return nil
}

func parseCommand(in inboundMessage) (app.Command, error) {
	switch in.Type {
	case "start":
		return app.Start{}, nil
	case "advance":
		return app.Advance{}, nil
	case "retreat":
		return app.Retreat{}, nil
	case "abortRecognition":
		return app.AbortRecognition{}, nil
	case "acknowledge":
		return app.AcknowledgeSectionReport{}, nil
	case "retake":
		return app.Retake{}, nil
	case "finish":
		return app.Finish{}, nil
	case "reshuffle":
		var p reshufflePayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return app.Reshuffle{Section: p.Section}, nil
	case "markCorrect", "markIncorrect":
		var p itemPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		outcome := domain.OutcomeCorrect
		if in.Type == "markIncorrect" {
			outcome = domain.OutcomeIncorrect
		}
		return app.RecordOutcome{ItemID: p.ItemID, Outcome: outcome}, nil
	case "toggle":
		var p itemPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return app.ToggleOutcome{ItemID: p.ItemID}, nil
	case "transcript":
		var p transcriptPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return app.SubmitTranscript{Transcript: p.Transcript}, nil
	case "navigate":
		var p sectionPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return app.Navigate{Section: p.Section}, nil
	}
	return nil, errUnsupported
}

var (
	errUnsupported = errors.New("unsupported message type")
	errBadPayload  = errors.New("invalid payload")
)

// decode accepts an empty payload and validates struct tags.
func decode(raw json.RawMessage, dst any) error {
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, dst); err != nil {
			return errBadPayload
		}
	}
	if err := validate.Struct(dst); err != nil {
		return errBadPayload
	}
	return nil
}

func toPayload(err error) errorPayload {
	return errorPayload{Code: errorCode(err), Message: err.Error()}
}

func errorCode(err error) string {
	codes := []struct {
		target error
		code   string
	}{
		{domain.ErrRecognitionUnavailable, "recognition_unavailable"},
		{domain.ErrRecognitionFailure, "recognition_failed"},
		{domain.ErrRecognitionAborted, "recognition_aborted"},
		{domain.ErrItemSubmitted, "item_submitted"},
		{domain.ErrNavigationLocked, "navigation_locked"},
		{domain.ErrInvalidTransition, "invalid_transition"},
		{domain.ErrUnknownSection, "unknown_section"},
		{domain.ErrInvalidItem, "invalid_item"},
		{domain.ErrEmptyCategory, "empty_category"},
		{domain.ErrSessionNotFound, "session_not_found"},
		{errUnsupported, "unsupported"},
		{errBadPayload, "bad_payload"},
	}
	for _, c := range codes {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return "internal"
}
