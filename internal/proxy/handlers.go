package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/florianilch/nodio"
)

// maxRequestBody limits inbound payloads.
const maxRequestBody = 1 << 20

type handlers struct {
	items ItemService
	tasks TaskService
}

func (h *handlers) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	ctx, status := recordStatus(r)
	data, err := h.items.Get(ctx, id)
	writeResult(ctx, w, *status, data, err)
}

// createItem takes the item's field values as the request body.
func (h *handlers) createItem(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeBody(w, r)
	if !ok {
		return
	}
	ctx, status := recordStatus(r)
	data, err := h.items.Create(ctx, fields)
	writeResult(ctx, w, *status, data, err)
}

func (h *handlers) filterItems(w http.ResponseWriter, r *http.Request) {
	filters, ok := decodeBody(w, r)
	if !ok {
		return
	}
	ctx, status := recordStatus(r)
	data, err := h.items.Filter(ctx, filters)
	writeResult(ctx, w, *status, data, err)
}

func (h *handlers) getComments(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	ctx, status := recordStatus(r)
	data, err := h.items.Comments(ctx, id)
	writeResult(ctx, w, *status, data, err)
}

func (h *handlers) addComment(w http.ResponseWriter, r *http.Request) {
	ctx, status := recordStatus(r)
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var comment struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&comment); err != nil {
		slog.DebugContext(ctx, "failed to decode comment", "error", err)
		writeJSONError(ctx, w, "invalid request body", http.StatusBadRequest)
		return
	}
	if comment.Value == "" {
		writeJSONError(ctx, w, "comment value required", http.StatusBadRequest)
		return
	}

	data, err := h.items.AddComment(ctx, id, comment.Value)
	writeResult(ctx, w, *status, data, err)
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request) {
	task, ok := decodeBody(w, r)
	if !ok {
		return
	}
	ctx, status := recordStatus(r)
	data, err := h.tasks.Create(ctx, task)
	writeResult(ctx, w, *status, data, err)
}

// recordStatus derives a request context that captures the upstream status.
func recordStatus(r *http.Request) (context.Context, *int) {
	status := new(int)
	return nodio.WithStatusRecorder(r.Context(), status), status
}

// itemID parses the {id} path value, writing a 400 response on failure.
func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(r.Context(), w, "invalid item id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeBody reads a JSON object body without interpreting it.
func decodeBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	var body json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		slog.DebugContext(r.Context(), "failed to decode request", "error", err)
		writeJSONError(r.Context(), w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	if len(body) == 0 || body[0] != '{' {
		writeJSONError(r.Context(), w, "request body must be a JSON object", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// writeResult relays an upstream result. Success statuses (200, 201) and error
// statuses are passed through; token exchange failures and transport errors
// become 502. Nothing is written once the client has gone away.
func writeResult(ctx context.Context, w http.ResponseWriter, status int, data json.RawMessage, err error) {
	if err == nil {
		if data == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if status == 0 {
			status = http.StatusOK
		}
		writeRawJSON(ctx, w, data, status)
		return
	}

	if errors.Is(err, context.Canceled) {
		slog.DebugContext(ctx, "client disconnected", "error", err)
		return
	}

	var reqErr *nodio.RequestError
	var authErr *nodio.AuthenticationError
	switch {
	case errors.As(err, &reqErr):
		status := reqErr.StatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		slog.WarnContext(ctx, "upstream request failed", "status", reqErr.StatusCode, "error", err)
		writeJSON(ctx, w, ErrorResponse{Error: "upstream request failed", StatusCode: reqErr.StatusCode, Response: reqErr.Raw}, status)
	case errors.As(err, &authErr):
		slog.ErrorContext(ctx, "authentication failed", "status", authErr.StatusCode, "error", err)
		writeJSON(ctx, w, ErrorResponse{Error: "authentication failed", StatusCode: authErr.StatusCode, Response: authErr.Raw}, http.StatusBadGateway)
	default:
		slog.ErrorContext(ctx, "request failed", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
