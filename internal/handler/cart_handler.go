package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/volman/internal/middleware"
	"github.com/hitoshi/volman/internal/model"
)

// CartServiceInterface はカートハンドラーが必要とするサービスインターフェース。
type CartServiceInterface interface {
	Add(ctx context.Context, username string, projectID int64, slots, hours int) error
	Remove(ctx context.Context, username string, projectID int64) error
	List(ctx context.Context, username string) ([]model.CartItem, error)
	Clear(ctx context.Context, username string) error
}

// CartHandler はカート操作のHTTPハンドラー。
type CartHandler struct {
	service CartServiceInterface
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(service CartServiceInterface) *CartHandler {
	return &CartHandler{service: service}
}

type addCartItemRequest struct {
	Slots int `json:"slots"`
	Hours int `json:"hours"`
}

// cartItemResponse はカート行のAPIレスポンス。
type cartItemResponse struct {
	ProjectID  int64     `json:"project_id"`
	Title      string    `json:"title"`
	Location   string    `json:"location"`
	Day        string    `json:"day"`
	HourlyRate float64   `json:"hourly_rate"`
	Slots      int       `json:"slots"`
	Hours      int       `json:"hours"`
	TotalValue float64   `json:"total_value"`
	AddedAt    time.Time `json:"added_at"`
}

type cartResponse struct {
	Items      []cartItemResponse `json:"items"`
	TotalValue float64            `json:"total_value"`
}

// ListCart はユーザーのカート内容を返す。
// GET /api/cart
func (h *CartHandler) ListCart(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	items, err := h.service.List(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := cartResponse{Items: make([]cartItemResponse, 0, len(items))}
	for i := range items {
		item := &items[i]
		resp.Items = append(resp.Items, cartItemResponse{
			ProjectID:  item.ProjectID,
			Title:      item.Title,
			Location:   item.Location,
			Day:        item.Day,
			HourlyRate: item.HourlyRate,
			Slots:      item.Slots,
			Hours:      item.Hours,
			TotalValue: item.TotalValue(),
			AddedAt:    item.AddedAt,
		})
		resp.TotalValue += item.TotalValue()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// AddCartItem はプロジェクトをカートに追加または上書きする。
// PUT /api/cart/:id
func (h *CartHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	projectID, err := parseProjectID(r)
	if err != nil {
		writeInvalidRequest(w)
		return
	}

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.service.Add(r.Context(), username, projectID, req.Slots, req.Hours); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveCartItem はカートから行を削除する。
// DELETE /api/cart/:id
func (h *CartHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	projectID, err := parseProjectID(r)
	if err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.service.Remove(r.Context(), username, projectID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearCart はカートの全行を削除する。
// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Clear(r.Context(), username); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
