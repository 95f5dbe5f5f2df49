package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bookstore/internal/domain"
)

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		t.Errorf("read body: %v", err)
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Errorf("body %s: %v", raw, err)
	}
	return m
}

func TestAuthLoginFlatShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login" || r.Method != http.MethodPost {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		body := decodeBody(t, r)
		if body["email"] != "ana@example.com" || body["password"] != "secret" {
			t.Errorf("body = %v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id": 3, "email": "ana@example.com", "nome": "Ana", "tipo": "cliente", "ativo": true,
			"access_token": "at", "refresh_token": "rt", "token_type": "bearer",
		})
	})
	res, err := NewAuthClient(c).Login(context.Background(), domain.Credentials{Email: "ana@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	want := domain.User{ID: "3", Name: "Ana", Email: "ana@example.com", Role: "cliente", Active: true}
	if res.User != want || res.AccessToken != "at" || res.RefreshToken != "rt" {
		t.Errorf("got %+v", res)
	}
}

func TestAuthRegisterNestedShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["password_confirmation"] != "pw1234" {
			t.Errorf("body = %v", body)
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"access_token": "at",
			"user":         map[string]any{"id": "u-9", "name": "Bia", "email": "bia@example.com", "role": "admin"},
		})
	})
	res, err := NewAuthClient(c).Register(context.Background(), domain.Registration{
		Name: "Bia", Email: "bia@example.com", Password: "pw1234", PasswordConfirmation: "pw1234",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User.ID != "u-9" || res.User.Role != "admin" || !res.User.Active {
		t.Errorf("user = %+v", res.User)
	}
}

func TestAuthRejectsIncompleteResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user_id": 1, "email": "x@example.com"})
	})
	_, err := NewAuthClient(c).Login(context.Background(), domain.Credentials{Email: "x@example.com", Password: "p"})
	if !errors.Is(err, domain.ErrUnexpectedResponse) {
		t.Fatalf("err = %v, want ErrUnexpectedResponse", err)
	}
}

func TestAuthRefreshAndMe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer old" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/auth/refresh":
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "new"})
		case "/me":
			writeJSON(w, http.StatusOK, map[string]any{"user_id": 5, "email": "c@example.com", "nome": "C", "ativo": false})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	auth := NewAuthClient(c)
	ctx := domain.WithToken(context.Background(), "old")

	tok, err := auth.Refresh(ctx)
	if err != nil || tok != "new" {
		t.Fatalf("Refresh = %q, %v", tok, err)
	}
	u, err := auth.Me(ctx)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if u.ID != "5" || u.Active {
		t.Errorf("user = %+v", u)
	}
	if _, err := auth.Me(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Me without token = %v, want ErrUnauthorized", err)
	}
}

func TestCatalogListBooks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/livros" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("page_size") != "10" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{"id": 1, "titulo": "Dom Casmurro", "autor": "Machado", "preco": 39.9, "estoque": 4, "categoria": "ficcao", "ativo": true},
				{"id": 2, "titulo": "Oculto", "autor": "X", "preco": 10, "categoria": "OUTROS", "ativo": false},
				{"id": 3, "titulo": "", "autor": "Sem título", "preco": 5, "categoria": "OUTROS"},
			},
			"total": 3, "page": 2, "page_size": 10,
		})
	})
	books, err := NewCatalogClient(c).ListBooks(context.Background(), domain.Page{Number: 2, Size: 10})
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("got %d books, want 1: %+v", len(books), books)
	}
	b := books[0]
	if b.ID != "1" || b.Category != domain.CategoryFiction || !b.Price.Equal(decimal.RequireFromString("39.90")) {
		t.Errorf("book = %+v", b)
	}
}

func TestCatalogCreateBookBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]json.RawMessage
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Error(err)
		}
		if string(body["preco"]) != "49.9" {
			t.Errorf("preco = %s, want unquoted number", body["preco"])
		}
		if string(body["condicao"]) != `"novo"` || string(body["categoria"]) != `"TECNICO"` {
			t.Errorf("body = %s", raw)
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"id": 12, "titulo": "Go", "autor": "Pike", "preco": 49.9, "categoria": "TECNICO", "condicao": "novo", "ativo": true,
		})
	})
	p, err := NewCatalogClient(c).CreateBook(context.Background(), domain.BookInput{
		Title: "Go", Author: "Pike", Price: decimal.RequireFromString("49.90"), Category: "tecnico",
	})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if p.ID != "12" {
		t.Errorf("id = %s", p.ID)
	}
}

func TestCatalogGetInactiveIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "titulo": "T", "preco": 1, "ativo": false})
	})
	if _, err := NewCatalogClient(c).GetBook(context.Background(), "1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestShippingLookup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/viacep/01001000":
			writeJSON(w, http.StatusOK, map[string]any{
				"cep": "01001-000", "logradouro": "Praça da Sé", "bairro": "Sé", "localidade": "São Paulo", "uf": "SP",
			})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"erro": true})
		}
	})
	ship := NewShippingClient(c)
	info, err := ship.LookupPostalCode(context.Background(), "01001-000")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if info.PostalCode != "01001000" || info.City != "São Paulo" || info.State != "SP" {
		t.Errorf("info = %+v", info)
	}
	if _, err := ship.LookupPostalCode(context.Background(), "99999999"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown cep err = %v, want ErrNotFound", err)
	}
}

func TestShippingCreateAndList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/enderecos":
			body := decodeBody(t, r)
			if body["usuario_id"] != float64(3) || body["cep"] != "01001000" || body["estado"] != "SP" || body["apelido"] != "Ana" {
				t.Errorf("body = %v", body)
			}
			writeJSON(w, http.StatusCreated, map[string]any{"id": 77, "usuario_id": 3, "cep": "01001000", "ativo": true})
		case r.Method == http.MethodGet && r.URL.Path == "/enderecos/usuario/3":
			writeJSON(w, http.StatusOK, map[string]any{
				"enderecos": []map[string]any{{"id": 77, "ativo": true}, {"id": 78, "ativo": false}, {"id": 0}},
				"total":     3,
			})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})
	ship := NewShippingClient(c)
	addr, err := ship.CreateAddress(context.Background(), domain.NewAddress{
		UserID: "3",
		Draft: domain.AddressDraft{
			Name: "Ana", PostalCode: "01001-000", Street: "Praça da Sé", Number: "1",
			Neighborhood: "Sé", City: "São Paulo", State: "sp",
		},
	})
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	if addr.ID != 77 {
		t.Errorf("id = %d", addr.ID)
	}
	list, err := ship.ListAddresses(context.Background(), "3")
	if err != nil {
		t.Fatalf("ListAddresses: %v", err)
	}
	if len(list) != 2 || list[1].Active {
		t.Errorf("list = %+v", list)
	}
}

func TestOrdersCreate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body struct {
			UsuarioID         json.RawMessage `json:"usuario_id"`
			EnderecoEntregaID int64           `json:"endereco_entrega_id"`
			ValorFrete        json.RawMessage `json:"valor_frete"`
			Items             []struct {
				LivroID       json.RawMessage `json:"livro_id"`
				Quantidade    int             `json:"quantidade"`
				PrecoUnitario json.RawMessage `json:"preco_unitario"`
			} `json:"items"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Error(err)
		}
		if string(body.UsuarioID) != "3" || body.EnderecoEntregaID != 77 || string(body.ValorFrete) != "19.9" {
			t.Errorf("body = %s", raw)
		}
		if len(body.Items) != 1 || string(body.Items[0].LivroID) != "1" || string(body.Items[0].PrecoUnitario) != "39.9" {
			t.Errorf("items = %s", raw)
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"id": 10, "usuario_id": 3, "endereco_entrega_id": 77, "numero_pedido": "PED-10",
			"status": "pendente", "valor_total": 59.8, "valor_frete": 19.9,
			"data_criacao": "2024-05-01T12:00:00.5", "data_atualizacao": nil,
			"items": []map[string]any{{"livro_id": 1, "livro_titulo": "Dom Casmurro", "quantidade": 1, "preco_unitario": 39.9, "subtotal": 39.9}},
		})
	})
	o, err := NewOrderClient(c).CreateOrder(context.Background(), domain.NewOrder{
		UserID: "3", AddressID: 77, ShippingFee: decimal.RequireFromString("19.90"),
		Items: []domain.OrderItem{{ProductID: "1", Quantity: 1, UnitPrice: decimal.RequireFromString("39.90")}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.ID != 10 || o.Status != domain.OrderPending || !o.Total.Equal(decimal.RequireFromString("59.80")) {
		t.Errorf("order = %+v", o)
	}
	if want := time.Date(2024, 5, 1, 12, 0, 0, 500000000, time.UTC); !o.CreatedAt.Equal(want) {
		t.Errorf("created = %v", o.CreatedAt)
	}
	if o.Items[0].Title != "Dom Casmurro" {
		t.Errorf("items = %+v", o.Items)
	}
}

func TestOrdersListAndStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("usuario_id") != "3" || r.URL.Query().Get("status") != "pendente" {
				t.Errorf("query = %s", r.URL.RawQuery)
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
				{"id": 1, "status": "pendente"}, {"id": 2},
			}})
		case http.MethodPatch:
			if r.URL.Path != "/pedidos/1/status" {
				t.Errorf("path = %s", r.URL.Path)
			}
			body := decodeBody(t, r)
			writeJSON(w, http.StatusOK, map[string]any{"id": 1, "status": body["status"]})
		}
	})
	orders := NewOrderClient(c)
	list, err := orders.ListOrders(context.Background(), domain.OrderFilter{UserID: "3", Status: domain.OrderPending})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("list = %+v", list)
	}
	o, err := orders.UpdateOrderStatus(context.Background(), 1, domain.OrderCancelled)
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	if o.Status != domain.OrderCancelled {
		t.Errorf("status = %s", o.Status)
	}
}

func TestPaymentsProcess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		switch r.URL.Path {
		case "/pagamento/processar/cartao":
			if body["numero_cartao"] != "4111111111111111" || body["parcelas"] != float64(1) {
				t.Errorf("card body = %v", body)
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"id": 1, "pedido_id": 10, "forma_pagamento": "cartao_credito", "status": "recusado",
				"valor": 59.8, "mensagem": "Cartão recusado",
			})
		case "/pagamento/processar/pix":
			writeJSON(w, http.StatusCreated, map[string]any{
				"id": 2, "pedido_id": 10, "forma_pagamento": "pix", "status": "pendente", "valor": 59.8,
				"dados_pagamento": `{"chave_pix":"k","qr_code":"00020126..."}`,
			})
		case "/pagamento/processar/boleto":
			if body["cpf_cnpj"] != "12345678909" {
				t.Errorf("boleto body = %v", body)
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"id": 3, "pedido_id": 10, "forma_pagamento": "boleto", "status": "pendente", "valor": 59.8,
				"codigo_barras": "2379000", "linha_digitavel": "23790.00",
				"dados_pagamento":    map[string]any{"vencimento": "2024-05-04T12:00:00"},
				"data_processamento": "2024-05-01T12:00:00",
			})
		}
	})
	pay := NewPaymentClient(c)
	total := decimal.RequireFromString("59.80")
	ctx := context.Background()

	card, err := pay.Process(ctx, domain.PaymentRequest{
		UserID: "3", OrderID: 10, Amount: total, Method: domain.MethodCard,
		Card: domain.CardDetails{Holder: "Ana Silva", Number: "4111 1111 1111 1111", Expiry: "12/30", CVV: "123"},
	})
	if err != nil {
		t.Fatalf("card: %v", err)
	}
	if !card.Status.Failed() || card.Message != "Cartão recusado" {
		t.Errorf("card = %+v", card)
	}
	if _, ok := card.Artifact.(domain.CardArtifact); !ok {
		t.Errorf("card artifact = %T", card.Artifact)
	}

	pix, err := pay.Process(ctx, domain.PaymentRequest{UserID: "3", OrderID: 10, Amount: total, Method: domain.MethodPix})
	if err != nil {
		t.Fatalf("pix: %v", err)
	}
	if a, ok := pix.Artifact.(domain.PixArtifact); !ok || a.QRCode != "00020126..." {
		t.Errorf("pix artifact = %#v", pix.Artifact)
	}

	boleto, err := pay.Process(ctx, domain.PaymentRequest{
		UserID: "3", OrderID: 10, Amount: total, Method: domain.MethodBoleto, Document: "123.456.789-09",
	})
	if err != nil {
		t.Fatalf("boleto: %v", err)
	}
	a, ok := boleto.Artifact.(domain.BoletoArtifact)
	if !ok || a.Barcode != "2379000" || a.DigitLine != "23790.00" {
		t.Fatalf("boleto artifact = %#v", boleto.Artifact)
	}
	if !a.DueDate.Equal(time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("due = %v", a.DueDate)
	}
}

func TestPaymentsPixWithoutQRCodeIsUnexpected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"id": 2, "forma_pagamento": "pix", "status": "pendente"})
	})
	_, err := NewPaymentClient(c).Process(context.Background(), domain.PaymentRequest{UserID: "3", OrderID: 1, Method: domain.MethodPix})
	if !errors.Is(err, domain.ErrUnexpectedResponse) {
		t.Fatalf("err = %v, want ErrUnexpectedResponse", err)
	}
}
