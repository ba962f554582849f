package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/videomaster/checkout-service/internal/catalog"
	"github.com/videomaster/checkout-service/internal/checkout"
	"github.com/videomaster/checkout-service/internal/handoff"
)

type CheckoutHandler struct {
	Machine *checkout.Machine
	Log     *slog.Logger
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Route("/checkout/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Post("/information", h.enterInformation)
			r.Post("/code", h.submitCode)
			r.Post("/resend", h.resendCode)
			r.Post("/back", h.back)
			r.Post("/discount", h.applyDiscount)
			r.Delete("/discount", h.removeDiscount)
			r.Post("/payment", h.submitPayment)
		})
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeCheckoutError maps domain failures onto statuses. Server-reported
// business errors pass through verbatim; transport failures stay generic.
func (h *CheckoutHandler) writeCheckoutError(w http.ResponseWriter, err error) {
	var be *checkout.BackendError
	switch {
	case errors.As(err, &be):
		writeError(w, http.StatusBadRequest, be.Detail)
	case errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, checkout.ErrUnknownProduct),
		errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, checkout.ErrValidation),
		errors.Is(err, checkout.ErrInvalidCodeFormat),
		errors.Is(err, checkout.ErrInvalidDiscountCode):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, checkout.ErrResendTooSoon):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, checkout.ErrNotVerified),
		errors.Is(err, checkout.ErrAlreadySubmitted),
		errors.Is(err, checkout.ErrOperationInFlight),
		errors.Is(err, checkout.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, checkout.ErrBackendUnavailable):
		writeError(w, http.StatusServiceUnavailable, checkout.ErrBackendUnavailable.Error())
	default:
		h.Log.Error("checkout operation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type createSessionReq struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	Surname       string `json:"surname"`
	Email         string `json:"email"`
	Ref           string `json:"ref"`
	Discount      string `json:"discount"`
	RecoveryToken string `json:"recovery_token"`
}

func (h *CheckoutHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id required")
		return
	}
	sess, err := h.Machine.NewSession(r.Context(), checkout.SessionParams{
		ProductID:     req.ProductID,
		Name:          req.Name,
		Surname:       req.Surname,
		Email:         req.Email,
		ReferralCode:  req.Ref,
		DiscountCode:  req.Discount,
		RecoveryToken: req.RecoveryToken,
	})
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	h.writeView(w, r, http.StatusCreated, sess.ID)
}

func (h *CheckoutHandler) getSession(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, http.StatusOK, chi.URLParam(r, "id"))
}

func (h *CheckoutHandler) enterInformation(w http.ResponseWriter, r *http.Request) {
	var b checkout.BuyerInfo
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	sess, err := h.Machine.EnterInformation(r.Context(), chi.URLParam(r, "id"), b)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	h.writeView(w, r, http.StatusOK, sess.ID)
}

func (h *CheckoutHandler) submitCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	sess, err := h.Machine.SubmitCode(r.Context(), chi.URLParam(r, "id"), req.Code)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	h.writeView(w, r, http.StatusOK, sess.ID)
}

func (h *CheckoutHandler) resendCode(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Machine.ResendCode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	h.writeView(w, r, http.StatusOK, sess.ID)
}

func (h *CheckoutHandler) back(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Machine.Back(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	h.writeView(w, r, http.StatusOK, sess.ID)
}

func (h *CheckoutHandler) applyDiscount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	sess, err := h.Machine.ApplyCode(r.Context(), chi.URLParam(r, "id"), req.Code)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	h.writeView(w, r, http.StatusOK, sess.ID)
}

func (h *CheckoutHandler) removeDiscount(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Machine.RemoveCode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	h.writeView(w, r, http.StatusOK, sess.ID)
}

// submitPayment answers with the auto-submitting gateway document on success.
func (h *CheckoutHandler) submitPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.Machine.SubmitPayment(r.Context(), id)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	doc, err := handoff.Document(*res)
	if err != nil {
		// Order exists but the redirect cannot be built: fatal for this
		// attempt, nothing to retry client-side.
		h.Log.Error("gateway handoff failed", "session_id", id, "err", err)
		writeError(w, http.StatusBadGateway, "payment redirect could not be constructed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

type discountResp struct {
	Type    string  `json:"type"`
	Code    string  `json:"code"`
	Amount  int     `json:"discount_amount"`
	Percent float64 `json:"discount_percent,omitempty"`
	Message string  `json:"message,omitempty"`
}

type sessionResp struct {
	ID            string             `json:"id"`
	Stage         string             `json:"stage"`
	Buyer         checkout.BuyerInfo `json:"buyer"`
	Authenticated bool               `json:"authenticated"`
	Product       productResp        `json:"product"`
	Discount      *discountResp      `json:"discount,omitempty"`
	FinalPrice    int                `json:"final_price"`
	CodeRemaining int                `json:"code_remaining,omitempty"`
	ResendIn      int                `json:"resend_in,omitempty"`
	Submitted     bool               `json:"submitted"`
}

type productResp struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	BasePrice       int      `json:"base_price"`
	OriginalPrice   int      `json:"original_price"`
	DiscountPercent int      `json:"discount_percent"`
	Features        []string `json:"features"`
}

func (h *CheckoutHandler) writeView(w http.ResponseWriter, r *http.Request, code int, id string) {
	v, err := h.Machine.View(r.Context(), id)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	resp := sessionResp{
		ID:            v.Session.ID,
		Stage:         string(v.Session.Stage),
		Buyer:         v.Session.Buyer,
		Authenticated: v.Session.Authenticated,
		FinalPrice:    v.FinalPrice,
		CodeRemaining: v.CodeRemaining,
		ResendIn:      v.ResendIn,
		Submitted:     v.Session.Submitted,
		Product: productResp{
			ID:              v.Product.ID,
			Name:            v.Product.Name,
			Description:     v.Product.Description,
			BasePrice:       v.Product.BasePrice,
			OriginalPrice:   v.Product.OriginalPrice,
			DiscountPercent: v.Product.DiscountPercent,
			Features:        v.Product.Features,
		},
	}
	if d := v.Session.Discount; d != nil {
		resp.Discount = &discountResp{
			Type:    string(d.Type),
			Code:    d.Code,
			Amount:  d.Amount,
			Percent: d.Percent,
			Message: d.Message,
		}
	}
	writeJSON(w, code, resp)
}
