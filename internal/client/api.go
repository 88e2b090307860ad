// Package client is a Go client for the GrowFrika API. Session implements
// the chat-screen reconciliation state machine; API is the HTTP transport.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Message is the server's message representation.
type Message struct {
	ID        string    `json:"message_id"`
	ConvoID   string    `json:"convo_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ImageURLs []string  `json:"image_urls,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the server's conversation representation.
type Conversation struct {
	ConvoID       string    `json:"convo_id"`
	Title         string    `json:"title"`
	LastMessageAt time.Time `json:"last_message_at"`
	IsArchived    bool      `json:"is_archived"`
	LastMessage   *Message  `json:"last_message,omitempty"`
}

type PredictResponse struct {
	Success      bool `json:"success"`
	Conversation struct {
		ConvoID string `json:"convo_id"`
		Title   string `json:"title"`
	} `json:"conversation"`
	UserMessage      Message        `json:"userMessage"`
	AssistantMessage Message        `json:"assistantMessage"`
	Prediction       map[string]any `json:"prediction"`
}

type ChatResponse struct {
	Response         string  `json:"response"`
	ConversationID   string  `json:"conversationId"`
	UserMessage      Message `json:"userMessage"`
	AssistantMessage Message `json:"assistantMessage"`
	Success          bool    `json:"success"`
}

type ConversationDetail struct {
	Conversation struct {
		Conversation
		Messages []Message `json:"messages"`
	} `json:"conversation"`
	Success bool `json:"success"`
}

type ListResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	Success       bool           `json:"success"`
}

// Backend is the server surface Session depends on. API implements it; tests
// substitute fakes.
type Backend interface {
	Predict(ctx context.Context, imagePath string) (*PredictResponse, error)
	Chat(ctx context.Context, convoID, message string) (*ChatResponse, error)
	GetConversation(ctx context.Context, convoID string) (*ConversationDetail, error)
}

// API talks to a GrowFrika server over HTTP with a bearer token.
type API struct {
	http *resty.Client
}

func NewAPI(baseURL, token string) *API {
	return &API{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(token),
	}
}

var _ Backend = (*API)(nil)

type apiError struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func checkResponse(resp *resty.Response, errBody *apiError) error {
	if resp.IsError() {
		if errBody != nil && errBody.Error != "" {
			return fmt.Errorf("server error (%s): %s", resp.Status(), errBody.Error)
		}
		return fmt.Errorf("server error (%s)", resp.Status())
	}
	return nil
}

func (a *API) Predict(ctx context.Context, imagePath string) (*PredictResponse, error) {
	var out PredictResponse
	var errBody apiError
	resp, err := a.http.R().
		SetContext(ctx).
		SetFile("image", imagePath).
		SetResult(&out).
		SetError(&errBody).
		Post("/api/ml/predict")
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp, &errBody); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Chat(ctx context.Context, convoID, message string) (*ChatResponse, error) {
	var out ChatResponse
	var errBody apiError
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"message": message, "convo_id": convoID}).
		SetResult(&out).
		SetError(&errBody).
		Post("/api/ml/chat")
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp, &errBody); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) GetConversation(ctx context.Context, convoID string) (*ConversationDetail, error) {
	var out ConversationDetail
	var errBody apiError
	resp, err := a.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errBody).
		Get("/api/ml/conversations/" + convoID)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp, &errBody); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) ListConversations(ctx context.Context, limit, offset int) (*ListResponse, error) {
	var out ListResponse
	var errBody apiError
	resp, err := a.http.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprint(limit)).
		SetQueryParam("offset", fmt.Sprint(offset)).
		SetResult(&out).
		SetError(&errBody).
		Get("/api/ml/conversations")
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp, &errBody); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) DeleteConversation(ctx context.Context, convoID string) error {
	var errBody apiError
	resp, err := a.http.R().
		SetContext(ctx).
		SetError(&errBody).
		Delete("/api/ml/conversation/" + convoID)
	if err != nil {
		return err
	}
	return checkResponse(resp, &errBody)
}

func (a *API) ArchiveConversation(ctx context.Context, convoID string) error {
	var errBody apiError
	resp, err := a.http.R().
		SetContext(ctx).
		SetError(&errBody).
		Patch("/api/ml/conversation/" + convoID + "/archive")
	if err != nil {
		return err
	}
	return checkResponse(resp, &errBody)
}
