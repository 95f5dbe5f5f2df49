package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bookstore/internal/domain"
)

// PaymentClient implements domain.PaymentGateway.
type PaymentClient struct {
	api *Client
}

// NewPaymentClient returns a payment gateway over c.
func NewPaymentClient(c *Client) *PaymentClient {
	return &PaymentClient{api: c}
}

// Method names as the payment service spells them.
const (
	wireCard   = "cartao_credito"
	wirePix    = "pix"
	wireBoleto = "boleto"
)

var processPaths = map[domain.PaymentMethod]string{
	domain.MethodCard:   "/pagamento/processar/cartao",
	domain.MethodPix:    "/pagamento/processar/pix",
	domain.MethodBoleto: "/pagamento/processar/boleto",
}

type paymentBody struct {
	UsuarioID wireID      `json:"usuario_id"`
	PedidoID  int64       `json:"pedido_id"`
	Valor     json.Number `json:"valor"`

	NumeroCartao string `json:"numero_cartao,omitempty"`
	NomeTitular  string `json:"nome_titular,omitempty"`
	Validade     string `json:"validade,omitempty"`
	CVV          string `json:"cvv,omitempty"`
	Parcelas     int    `json:"parcelas,omitempty"`

	CPFCNPJ string `json:"cpf_cnpj,omitempty"`
}

type paymentWire struct {
	ID                int64           `json:"id"`
	PedidoID          int64           `json:"pedido_id"`
	FormaPagamento    string          `json:"forma_pagamento"`
	Status            string          `json:"status"`
	Valor             decimal.Decimal `json:"valor"`
	CodigoTransacao   string          `json:"codigo_transacao"`
	DadosPagamento    json.RawMessage `json:"dados_pagamento"`
	DataProcessamento wireTime        `json:"data_processamento"`
	DataCriacao       wireTime        `json:"data_criacao"`
	Mensagem          string          `json:"mensagem"`
	Observacoes       string          `json:"observacoes"`
	QRCode            string          `json:"qr_code"`
	CodigoBarras      string          `json:"codigo_barras"`
	LinhaDigitavel    string          `json:"linha_digitavel"`
}

// paymentData decodes dados_pagamento, which arrives either as an object or
// as a JSON document inside a string.
func (p paymentWire) paymentData() map[string]any {
	raw := bytes.TrimSpace(p.DadosPagamento)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		raw = []byte(s)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func methodOf(wire string) (domain.PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(wire)) {
	case wireCard, "cartao", "card":
		return domain.MethodCard, true
	case wirePix:
		return domain.MethodPix, true
	case wireBoleto:
		return domain.MethodBoleto, true
	}
	return "", false
}

func (c *PaymentClient) receipt(res paymentWire, fallback domain.PaymentMethod) (*domain.PaymentReceipt, error) {
	if res.ID <= 0 || res.Status == "" {
		return nil, c.api.unexpected("payment without id or status")
	}
	method, ok := methodOf(res.FormaPagamento)
	if !ok {
		if fallback == "" {
			return nil, c.api.unexpected(fmt.Sprintf("payment method %q", res.FormaPagamento))
		}
		method = fallback
	}
	processed := res.DataProcessamento.Time
	if processed.IsZero() {
		processed = res.DataCriacao.Time
	}
	out := &domain.PaymentReceipt{
		ID:              res.ID,
		OrderID:         res.PedidoID,
		Status:          domain.PaymentStatus(strings.ToLower(res.Status)),
		Amount:          res.Valor,
		TransactionCode: res.CodigoTransacao,
		Message:         firstNonEmpty(res.Mensagem, res.Observacoes),
		ProcessedAt:     processed,
	}

	data := res.paymentData()
	switch method {
	case domain.MethodCard:
		out.Artifact = domain.CardArtifact{}
	case domain.MethodPix:
		qr := firstNonEmpty(res.QRCode, stringField(data, "qr_code"))
		if qr == "" && !out.Status.Failed() {
			return nil, c.api.unexpected("pix payment without qr code")
		}
		out.Artifact = domain.PixArtifact{QRCode: qr}
	case domain.MethodBoleto:
		b := domain.BoletoArtifact{
			Barcode:   firstNonEmpty(res.CodigoBarras, stringField(data, "codigo_barras")),
			DigitLine: firstNonEmpty(res.LinhaDigitavel, stringField(data, "linha_digitavel")),
		}
		if (b.Barcode == "" || b.DigitLine == "") && !out.Status.Failed() {
			return nil, c.api.unexpected("boleto payment without barcode or digit line")
		}
		if due, err := parseTime(stringField(data, "vencimento")); err == nil {
			b.DueDate = due
		}
		out.Artifact = b
	}
	return out, nil
}

// Process charges an order with the method of req.
func (c *PaymentClient) Process(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentReceipt, error) {
	path, ok := processPaths[req.Method]
	if !ok {
		return nil, fmt.Errorf("%s: unsupported payment method %q", c.api.service, req.Method)
	}
	body := paymentBody{
		UsuarioID: wireID(req.UserID),
		PedidoID:  req.OrderID,
		Valor:     money(req.Amount),
	}
	switch req.Method {
	case domain.MethodCard:
		body.NumeroCartao = digitsOnly(req.Card.Number)
		body.NomeTitular = strings.TrimSpace(req.Card.Holder)
		body.Validade = strings.TrimSpace(req.Card.Expiry)
		body.CVV = strings.TrimSpace(req.Card.CVV)
		body.Parcelas = req.Card.Installments
		if body.Parcelas < 1 {
			body.Parcelas = 1
		}
	case domain.MethodBoleto:
		body.CPFCNPJ = digitsOnly(req.Document)
	}

	var res paymentWire
	if err := c.api.do(ctx, http.MethodPost, path, nil, body, &res); err != nil {
		return nil, err
	}
	return c.receipt(res, req.Method)
}

// Get returns a payment by id.
func (c *PaymentClient) Get(ctx context.Context, id int64) (*domain.PaymentReceipt, error) {
	var res paymentWire
	if err := c.api.do(ctx, http.MethodGet, "/pagamento/"+strconv.FormatInt(id, 10), nil, nil, &res); err != nil {
		return nil, err
	}
	return c.receipt(res, "")
}
