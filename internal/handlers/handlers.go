package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"draftauction/internal/auction"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Ограничение размера тела запроса
const maxBodyBytes = 1048576

// Handler оборачивает сервис аукциона для Action API
type Handler struct {
	Service  AuctionService
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandler создает новый Handler
func NewHandler(svc AuctionService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	// в ошибках валидации используем имена полей из JSON
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{Service: svc, validate: v, log: logger}
}

// PingHandler отвечает {"ok":true} для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type errorBody struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError: ошибка валидации → 400, остальное → 500 с исходным текстом
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, action string, auctionID uuid.UUID, err error) {
	var verr *auction.Error
	if errors.As(err, &verr) {
		h.log.Debug("action rejected",
			slog.String("action", action),
			slog.String("auction_id", auctionID.String()),
			slog.String("reason", verr.Message))
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Message, Details: verr.Details})
		return
	}
	h.log.Error("action failed",
		slog.String("action", action),
		slog.String("auction_id", auctionID.String()),
		slog.String("request_id", requestID(r)),
		slog.Any("error", err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string, details map[string]any) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Details: details})
}

// decode читает JSON-тело в dst и проверяет его теги validate
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(w, "request body too large", nil)
			return false
		}
		badRequest(w, "invalid JSON body", map[string]any{"reason": err.Error()})
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			badRequest(w, "invalid request", map[string]any{"reason": err.Error()})
			return false
		}
		details := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = describe(fe)
		}
		badRequest(w, "invalid request", details)
		return false
	}
	return true
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}
