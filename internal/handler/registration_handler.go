package handler

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/volman/internal/middleware"
	"github.com/hitoshi/volman/internal/repository"
)

// RegistrationHandler は確定済み登録の参照系HTTPハンドラー。
type RegistrationHandler struct {
	registrationRepo repository.RegistrationRepository
}

// NewRegistrationHandler はRegistrationHandlerを生成する。
func NewRegistrationHandler(registrationRepo repository.RegistrationRepository) *RegistrationHandler {
	return &RegistrationHandler{registrationRepo: registrationRepo}
}

// registrationResponse は登録レコードのAPIレスポンス。
type registrationResponse struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Slots       int       `json:"slots"`
	Hours       int       `json:"hours"`
	ConfirmedAt time.Time `json:"confirmed_at"`
	TotalValue  float64   `json:"total_value"`
}

// ListRegistrations はユーザーの登録履歴を新しい順で返す。
// GET /api/registrations
func (h *RegistrationHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	registrations, err := h.registrationRepo.ListByUser(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]registrationResponse, 0, len(registrations))
	for _, reg := range registrations {
		responses = append(responses, registrationResponse{
			ID:          reg.ID,
			ProjectID:   reg.ProjectID,
			Slots:       reg.Slots,
			Hours:       reg.Hours,
			ConfirmedAt: reg.ConfirmedAt,
			TotalValue:  reg.TotalValue,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// ExportRegistrations はユーザーの登録履歴をCSVでダウンロードさせる。
// GET /api/registrations/export
func (h *RegistrationHandler) ExportRegistrations(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	registrations, err := h.registrationRepo.ListByUser(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "registrations.csv"))

	cw := csv.NewWriter(w)
	defer cw.Flush()

	cw.Write([]string{"reg_id", "project_id", "slots", "hours", "confirmed_at", "total_value"})
	for _, reg := range registrations {
		cw.Write([]string{
			strconv.FormatInt(reg.ID, 10),
			strconv.FormatInt(reg.ProjectID, 10),
			strconv.Itoa(reg.Slots),
			strconv.Itoa(reg.Hours),
			reg.ConfirmedAt.Format(time.RFC3339),
			strconv.FormatFloat(reg.TotalValue, 'f', 2, 64),
		})
	}
}
