package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/volman/internal/catalog"
	"github.com/hitoshi/volman/internal/middleware"
	"github.com/hitoshi/volman/internal/model"
	"github.com/hitoshi/volman/internal/repository"
)

// CatalogImporterInterface はカタログ取り込み処理のインターフェース。
type CatalogImporterInterface interface {
	ImportURL(ctx context.Context, rawURL string) (*catalog.ImportResult, error)
}

// AdminHandler は管理者向けのHTTPハンドラー。
// 無効化済みを含む全プロジェクトの一覧、有効フラグの切り替え、
// カタログの再取り込みを提供する。
type AdminHandler struct {
	projectRepo repository.ProjectRepository
	importer    CatalogImporterInterface
	adminUsers  map[string]struct{}
	zone        *time.Location
}

// NewAdminHandler はAdminHandlerを生成する。
// adminUsernamesに含まれるユーザーのみが管理操作を実行できる。
func NewAdminHandler(projectRepo repository.ProjectRepository, importer CatalogImporterInterface, adminUsernames []string, zone *time.Location) *AdminHandler {
	if zone == nil {
		zone = time.UTC
	}
	admins := make(map[string]struct{}, len(adminUsernames))
	for _, u := range adminUsernames {
		admins[u] = struct{}{}
	}
	return &AdminHandler{
		projectRepo: projectRepo,
		importer:    importer,
		adminUsers:  admins,
		zone:        zone,
	}
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

type importCatalogRequest struct {
	URL string `json:"url"`
}

type importCatalogResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// requireAdmin はリクエストユーザーが管理者か検査する。
// 管理者でなければ403を書き込みfalseを返す。
func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return false
	}
	if _, ok := h.adminUsers[username]; !ok {
		writeAPIErrorResponse(w, http.StatusForbidden, &model.APIError{
			Code:     "FORBIDDEN",
			Message:  "この操作には管理者権限が必要です。",
			Category: "auth",
			Action:   "管理者アカウントでログインしてください。",
		})
		return false
	}
	return true
}

// ListAllProjects は無効化済みを含む全プロジェクトを返す。
// GET /api/admin/projects
func (h *AdminHandler) ListAllProjects(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	projects, err := h.projectRepo.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	now := time.Now().In(h.zone)
	ph := &ProjectHandler{projectRepo: h.projectRepo, zone: h.zone}
	responses := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		responses = append(responses, ph.toProjectResponse(p, now))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// SetProjectActive はプロジェクトの有効フラグを切り替える。
// 無効化されたプロジェクトは新規確定の対象外になるが、既存の登録は保持される。
// PUT /api/admin/projects/:id/active
func (h *AdminHandler) SetProjectActive(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id, err := parseProjectID(r)
	if err != nil {
		writeInvalidRequest(w)
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
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

	if err := h.projectRepo.SetActive(r.Context(), id, req.Active); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ImportCatalog はリモートURLからカタログCSVを取り込む。
// POST /api/admin/catalog/import
func (h *AdminHandler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req importCatalogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeInvalidRequest(w)
		return
	}

	result, err := h.importer.ImportURL(r.Context(), req.URL)
	if err != nil {
		slog.Error("カタログ取り込みに失敗しました",
			slog.String("url", req.URL),
			slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusBadGateway, &model.APIError{
			Code:     "IMPORT_FAILED",
			Message:  "カタログの取り込みに失敗しました。",
			Category: "external",
			Action:   "URLを確認して再度お試しください。",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(importCatalogResponse{
		Imported: result.Imported,
		Skipped:  result.Skipped,
	})
}
