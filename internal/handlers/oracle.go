package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"unicode/utf8"

	"go.uber.org/zap"

	"oracle-gateway/internal/oracle"
	"oracle-gateway/pkg/logging/logging"
)

const (
	msgNoQuestion  = "Please ask a question."
	msgInvalidUTF8 = "Question must be valid UTF-8 text."
)

// Resolver answers a question, generating and storing the answer if needed.
type Resolver interface {
	Resolve(ctx context.Context, question string) (string, error)
}

// AnswerSource draws an uncached answer.
type AnswerSource interface {
	Generate(ctx context.Context, question string) (string, error)
}

type answerResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// OracleHandler serves the oracle endpoints.
type OracleHandler struct {
	Oracle  Resolver
	Answers AnswerSource
}

func NewOracleHandler(o Resolver, answers AnswerSource) *OracleHandler {
	return &OracleHandler{
		Oracle:  o,
		Answers: answers,
	}
}

// Ask handles POST / and POST /v1/oracle. The raw request body is the question.
func (h *OracleHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			logger.Warn("question too large", zap.Int64("limit", maxErr.Limit))
			writeText(w, http.StatusRequestEntityTooLarge, "Question is too long.")
			return
		}
		logger.Warn("read question failed", zap.Error(err))
		writeText(w, http.StatusBadRequest, "Could not read the question.")
		return
	}

	if len(body) == 0 {
		writeText(w, http.StatusBadRequest, msgNoQuestion)
		return
	}
	if !utf8.Valid(body) {
		logger.Warn("question is not valid UTF-8", zap.Int("bytes", len(body)))
		writeText(w, http.StatusBadRequest, msgInvalidUTF8)
		return
	}

	answer, err := h.Oracle.Resolve(ctx, string(body))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{Answer: answer})
}

// Random handles GET /v1/answer: one uncached draw.
func (h *OracleHandler) Random(w http.ResponseWriter, r *http.Request) {
	answer, err := h.Answers.Generate(r.Context(), "")
	if err != nil {
		logging.L(r.Context()).Error("random answer failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "generation_failure"})
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Answer: answer})
}

// writeError maps an oracle failure to a status code. Nothing here ever
// turns a failure into an answer.
func (h *OracleHandler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := logging.L(ctx)

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		logger.Warn("oracle timed out", zap.Error(err))
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "gateway_timeout"})
		return
	}

	switch oracle.KindOf(err) {
	case oracle.KindValidation:
		writeText(w, http.StatusBadRequest, msgNoQuestion)
	case oracle.KindInference:
		logger.Error("oracle inference failure", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "inference_failure"})
	case oracle.KindEncoding:
		logger.Error("oracle encoding failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "encoding_failure"})
	case oracle.KindStore:
		logger.Error("oracle store failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "store_failure"})
	default:
		logger.Error("oracle failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_server_error"})
	}
}

// writeJSON encodes v with encoding/json, so answer text is always escaped.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
