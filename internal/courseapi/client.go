// Package courseapi is the HTTP client for the course backend: verification
// codes, referral/discount validation, cart recovery and order creation.
package courseapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/videomaster/checkout-service/internal/checkout"
)

type Client struct {
	baseURL string
	hc      *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

var _ checkout.Backend = (*Client)(nil)

type sendCodeReq struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

func (c *Client) SendVerificationCode(ctx context.Context, email, name, surname string) error {
	return c.post(ctx, "/api/checkout/send-code", sendCodeReq{Email: email, Name: name, Surname: surname}, nil)
}

func (c *Client) VerifyCode(ctx context.Context, email, code string) error {
	q := url.Values{"email": {email}, "code": {code}}
	return c.post(ctx, "/api/checkout/verify-code?"+q.Encode(), nil, nil)
}

type validationResp struct {
	Valid           bool    `json:"valid"`
	DiscountAmount  float64 `json:"discount_amount"`
	DiscountPercent float64 `json:"discount_percent"`
	Message         string  `json:"message"`
}

func (c *Client) ValidateReferral(ctx context.Context, code string) (checkout.CodeValidation, error) {
	var v validationResp
	if err := c.get(ctx, "/api/referrals/validate/"+url.PathEscape(code), &v); err != nil {
		return checkout.CodeValidation{}, err
	}
	return checkout.CodeValidation{
		Valid:          v.Valid,
		DiscountAmount: v.DiscountAmount,
		Message:        v.Message,
	}, nil
}

func (c *Client) ValidateDiscount(ctx context.Context, code string) (checkout.CodeValidation, error) {
	var v validationResp
	if err := c.get(ctx, "/api/referrals/discounts/validate/"+url.PathEscape(code), &v); err != nil {
		return checkout.CodeValidation{}, err
	}
	return checkout.CodeValidation{
		Valid:           v.Valid,
		DiscountAmount:  v.DiscountAmount,
		DiscountPercent: v.DiscountPercent,
		Message:         v.Message,
	}, nil
}

type recoverResp struct {
	Order struct {
		BuyerName    string `json:"buyer_name"`
		BuyerSurname string `json:"buyer_surname"`
		BuyerEmail   string `json:"buyer_email"`
		DiscountCode string `json:"discount_code"`
	} `json:"order"`
}

func (c *Client) RecoverCart(ctx context.Context, token string) (checkout.RecoveredCart, error) {
	var r recoverResp
	if err := c.get(ctx, "/api/checkout/recover/"+url.PathEscape(token), &r); err != nil {
		return checkout.RecoveredCart{}, err
	}
	return checkout.RecoveredCart{
		Name:         r.Order.BuyerName,
		Surname:      r.Order.BuyerSurname,
		Email:        r.Order.BuyerEmail,
		DiscountCode: r.Order.DiscountCode,
	}, nil
}

type createOrderReq struct {
	BuyerName        string `json:"buyer_name"`
	BuyerSurname     string `json:"buyer_surname"`
	BuyerEmail       string `json:"buyer_email"`
	VerificationCode string `json:"verification_code"`
	ProductID        string `json:"product_id"`
	DiscountCode     string `json:"discount_code,omitempty"`
	DiscountType     string `json:"discount_type,omitempty"`
	DiscountAmount   int    `json:"discount_amount,omitempty"`
}

type createOrderResp struct {
	PaymentURL string            `json:"payment_url"`
	FormData   map[string]string `json:"form_data"`
}

func (c *Client) CreateOrder(ctx context.Context, req checkout.OrderRequest) (checkout.OrderResult, error) {
	var out createOrderResp
	body := createOrderReq{
		BuyerName:        req.BuyerName,
		BuyerSurname:     req.BuyerSurname,
		BuyerEmail:       req.BuyerEmail,
		VerificationCode: req.VerificationCode,
		ProductID:        req.ProductID,
		DiscountCode:     req.DiscountCode,
		DiscountType:     req.DiscountType,
		DiscountAmount:   req.DiscountAmount,
	}
	if err := c.post(ctx, "/api/payment/create-guest-order", body, &out); err != nil {
		return checkout.OrderResult{}, err
	}
	return checkout.OrderResult{PaymentURL: out.PaymentURL, FormFields: out.FormData}, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &checkout.BackendError{Status: resp.StatusCode, Detail: extractDetail(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

const genericDetail = "unexpected server error"

// extractDetail pulls the server's message out of a failure body. `detail` may
// be a plain string or an object with a nested msg; anything else falls back
// to a generic message rather than fabricating a specific one.
func extractDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return genericDetail
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil && s != "" {
		return s
	}
	var obj struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &obj); err == nil && obj.Msg != "" {
		return obj.Msg
	}
	return genericDetail
}
