package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/volman/internal/model"
	"github.com/hitoshi/volman/internal/repository"
	"github.com/hitoshi/volman/internal/week"
)

// ProjectHandler はプロジェクトカタログの参照系HTTPハンドラー。
type ProjectHandler struct {
	projectRepo repository.ProjectRepository
	zone        *time.Location
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(projectRepo repository.ProjectRepository, zone *time.Location) *ProjectHandler {
	if zone == nil {
		zone = time.UTC
	}
	return &ProjectHandler{
		projectRepo: projectRepo,
		zone:        zone,
	}
}

// projectResponse はプロジェクト情報のAPIレスポンス。
// AvailableSlotsは導出値、EligibleThisWeekは設定タイムゾーンの今日に基づく。
type projectResponse struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Location         string  `json:"location"`
	Day              string  `json:"day"`
	HourlyRate       float64 `json:"hourly_rate"`
	TotalSlots       int     `json:"total_slots"`
	RegisteredSlots  int     `json:"registered_slots"`
	AvailableSlots   int     `json:"available_slots"`
	Active           bool    `json:"active"`
	EligibleThisWeek bool    `json:"eligible_this_week"`
}

// ListProjects は有効なプロジェクトの一覧を返す。
// GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectRepo.ListActive(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	now := time.Now().In(h.zone)
	responses := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		responses = append(responses, h.toProjectResponse(p, now))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// GetProject はプロジェクト詳細を返す。
// GET /api/projects/:id
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseProjectID(r)
	if err != nil {
		writeInvalidRequest(w)
		return
	}

	project, err := h.projectRepo.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if project == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProjectNotFoundError(id))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.toProjectResponse(project, time.Now().In(h.zone)))
}

// GetAvailability はプロジェクトの残り枠数のみを返す。
// GET /api/projects/:id/availability
func (h *ProjectHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := parseProjectID(r)
	if err != nil {
		writeInvalidRequest(w)
		return
	}

	available, err := h.projectRepo.Available(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"project_id":      id,
		"available_slots": available,
	})
}

func (h *ProjectHandler) toProjectResponse(p *model.Project, now time.Time) projectResponse {
	return projectResponse{
		ID:               p.ID,
		Title:            p.Title,
		Location:         p.Location,
		Day:              p.Day,
		HourlyRate:       p.HourlyRate,
		TotalSlots:       p.TotalSlots,
		RegisteredSlots:  p.RegisteredSlots,
		AvailableSlots:   p.AvailableSlots(),
		Active:           p.Active,
		EligibleThisWeek: week.IsAllowedAt(p.Day, now),
	}
}

// parseProjectID はURLパラメータからプロジェクトIDを取得する。
func parseProjectID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
