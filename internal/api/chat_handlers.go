package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AlvinLimo/GrowFrika/internal/store"
)

type conversationSummary struct {
	ConvoID string `json:"convo_id"`
	Title   string `json:"title"`
}

// PredictHandler accepts a multipart image upload, runs classification and
// bootstraps a conversation from the outcome. The upload spool file is
// removed on every exit path; a copy is retained for serving only once the
// conversation exists.
func (h *APIHandler) PredictHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Image exceeds the 5MB upload limit"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "No image uploaded"})
		return
	}
	defer file.Close()

	// Sniff the real content type rather than trusting the client header.
	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Only image files are allowed"})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.writeError(w, r, err)
		return
	}

	ext := filepath.Ext(header.Filename)
	imageName := uuid.NewString() + ext
	spoolPath := filepath.Join(h.uploadDir, "spool_"+imageName)

	spool, err := os.Create(spoolPath)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("failed to spool upload: %w", err))
		return
	}
	defer func() {
		if err := os.Remove(spoolPath); err != nil {
			h.logger.Warn("failed to remove upload spool", zap.String("path", spoolPath), zap.Error(err))
		}
	}()

	if _, err := io.Copy(spool, file); err != nil {
		spool.Close()
		h.writeError(w, r, fmt.Errorf("failed to write upload: %w", err))
		return
	}
	spool.Close()

	outcome, err := h.convos.ClassifyAndCreate(r.Context(), userID, spoolPath, "/uploads/"+imageName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Keep a copy for the canonical image URL now that the messages exist.
	if err := copyFile(spoolPath, filepath.Join(h.uploadDir, imageName)); err != nil {
		h.logger.Warn("failed to retain uploaded image", zap.String("name", imageName), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"conversation": conversationSummary{
			ConvoID: outcome.Conversation.ID,
			Title:   outcome.Conversation.Title,
		},
		"userMessage":      outcome.UserMessage,
		"assistantMessage": outcome.AssistantMessage,
		"prediction":       outcome.Prediction,
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type ChatRequest struct {
	Message string `json:"message"`
	ConvoID string `json:"convo_id"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Message is required"})
		return
	}
	if req.ConvoID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "convo_id is required"})
		return
	}

	outcome, err := h.convos.SendMessage(r.Context(), userID, req.ConvoID, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response":         outcome.AssistantMessage.Content,
		"conversationId":   outcome.Conversation.ID,
		"userMessage":      outcome.UserMessage,
		"assistantMessage": outcome.AssistantMessage,
		"success":          true,
	})
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	convos, total, err := h.convos.ListConversations(userID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if convos == nil {
		convos = []store.Conversation{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": convos,
		"total":         total,
		"success":       true,
	})
}

type conversationWithMessages struct {
	*store.Conversation
	Messages []store.Message `json:"messages"`
}

func (h *APIHandler) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	convoID := chi.URLParam(r, "convoID")

	convo, messages, err := h.convos.GetConversation(userID, convoID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": conversationWithMessages{Conversation: convo, Messages: messages},
		"success":      true,
	})
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	convoID := chi.URLParam(r, "convoID")

	if err := h.convos.DeleteConversation(userID, convoID); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Conversation deleted",
	})
}

func (h *APIHandler) ArchiveConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	convoID := chi.URLParam(r, "convoID")

	if err := h.convos.ArchiveConversation(userID, convoID); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Conversation archived",
	})
}
