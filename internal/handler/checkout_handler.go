package handler

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/hitoshi/volman/internal/middleware"
)

// CheckoutServiceInterface は確定ハンドラーが必要とするサービスインターフェース。
type CheckoutServiceInterface interface {
	Confirm(ctx context.Context, username string) ([]int64, error)
}

// CheckoutHandler はカート確定のHTTPハンドラー。
type CheckoutHandler struct {
	service CheckoutServiceInterface
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(service CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// checkoutResponse は確定成功時のAPIレスポンス。
// ConfirmationCodeは利用者への表示用で、永続化はされない。
type checkoutResponse struct {
	RegistrationIDs  []int64 `json:"registration_ids"`
	ConfirmationCode string  `json:"confirmation_code"`
}

// Confirm はカートの全行を原子的に確定する。
// POST /api/checkout
//
// 成功時は新規登録IDと6桁の確認コードを返す。
// 容量不足や資格外の曜日が1件でもあれば何も確定されない。
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	regIDs, err := h.service.Confirm(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	code, err := generateConfirmationCode()
	if err != nil {
		// 確定自体は成功しているため、コード生成失敗でエラーにはしない
		slog.Error("failed to generate confirmation code", slog.String("error", err.Error()))
		code = "000000"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(checkoutResponse{
		RegistrationIDs:  regIDs,
		ConfirmationCode: code,
	})
}

// generateConfirmationCode は表示用の6桁確認コードを生成する。
func generateConfirmationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
