package server

import (
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/dataloom/internal/ai"
	"github.com/KaramelBytes/dataloom/internal/chat"
)

type chatRequest struct {
	Question string `json:"question"`
	Stream   bool   `json:"stream"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

type chatHistory struct {
	Dataset   string       `json:"dataset"`
	Truncated bool         `json:"context_truncated"`
	Messages  []ai.Message `json:"messages"`
}

type chatEvent struct {
	Delta string `json:"delta,omitempty"`
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
	Done  bool   `json:"done,omitempty"`
}

func (s *Server) chatOptions(model string) chat.Options {
	if model == "" {
		model = s.cfg.DefaultModel
	}
	return chat.Options{
		Model:         model,
		MaxTokens:     s.cfg.MaxTokens,
		Temperature:   s.cfg.Temperature,
		ContextBudget: s.cfg.ContextTokenBudget,
	}
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	conv := sessionFrom(r).ExistingConversation()
	if conv == nil {
		writeJSON(w, http.StatusOK, chatHistory{Messages: []ai.Message{}})
		return
	}
	writeJSON(w, http.StatusOK, chatHistory{Dataset: conv.Name(), Truncated: conv.Truncated(), Messages: conv.Messages()})
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	if conv := sessionFrom(r).ExistingConversation(); conv != nil {
		conv.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleChat answers a question about the working table. With "stream": true
// the reply is sent as server-sent events, one JSON chatEvent per event.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	conv, err := sess.Conversation(s.chatOptions(req.Model))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	provider := req.Provider
	if provider == "" {
		provider = s.cfg.DefaultProvider
	}
	rt, err := s.runtime(provider)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	provider = ai.NormalizeProvider(provider)

	flusher, canStream := w.(http.Flusher)
	if !req.Stream || !canStream {
		reply, err := conv.Ask(r.Context(), rt, req.Question, nil)
		s.countChat(provider, err)
		if err != nil && reply == "" {
			s.fail(w, r, err)
			return
		}
		body := chatEvent{Reply: reply, Done: true}
		if err != nil {
			body.Error = err.Error()
		}
		writeJSON(w, http.StatusOK, body)
		return
	}

	sse.Event{}.WriteContentType(w)
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	send := func(ev chatEvent) {
		if err := sse.Encode(w, sse.Event{Event: "message", Data: ev}); err != nil {
			s.log.WithError(err).Debug("chat event not sent")
			return
		}
		flusher.Flush()
	}
	reply, err := conv.Ask(r.Context(), rt, req.Question, func(d string) { send(chatEvent{Delta: d}) })
	s.countChat(provider, err)
	final := chatEvent{Reply: reply, Done: true}
	if err != nil {
		final.Error = err.Error()
	}
	send(final)
}

func (s *Server) countChat(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.log.WithFields(logrus.Fields{"provider": provider}).WithError(err).Warn("chat request failed")
	}
	s.metrics.chats.WithLabelValues(provider, outcome).Inc()
}
