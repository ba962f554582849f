// Package handoff renders the opaque POST redirect to the hosted payment
// page: an auto-submitting form with one hidden input per gateway field.
// The submit is delayed briefly so the buyer sees the success state before
// navigation, and the hand-off is one-shot by contract.
package handoff

import (
	"bytes"
	"errors"
	"html/template"

	"github.com/videomaster/checkout-service/internal/checkout"
)

var ErrNoPaymentURL = errors.New("order result has no payment url")

const submitDelayMS = 500

var docTmpl = template.Must(template.New("handoff").Parse(`<!doctype html>
<html lang="tr">
<head><meta charset="utf-8"><title>Ödemeye yönlendiriliyorsunuz…</title></head>
<body onload="setTimeout(function(){document.getElementById('gateway').submit();}, {{.DelayMS}})">
<p>Güvenli ödeme sayfasına yönlendiriliyorsunuz…</p>
<form id="gateway" action="{{.PaymentURL}}" method="POST">
{{- range $name, $value := .Fields}}
<input type="hidden" name="{{$name}}" value="{{$value}}">
{{- end}}
<noscript><button type="submit">Ödemeye devam et</button></noscript>
</form>
</body>
</html>
`))

// Document builds the redirect page from an order result. Failing here after
// a successful order creation is fatal to the checkout attempt: there is no
// client-side retry path.
func Document(res checkout.OrderResult) ([]byte, error) {
	if res.PaymentURL == "" {
		return nil, ErrNoPaymentURL
	}
	var buf bytes.Buffer
	err := docTmpl.Execute(&buf, struct {
		PaymentURL string
		Fields     map[string]string
		DelayMS    int
	}{res.PaymentURL, res.FormFields, submitDelayMS})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
