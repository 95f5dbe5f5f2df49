package app

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Beneficiary is the company printed as payee on boleto slips.
type Beneficiary struct {
	Name    string `mapstructure:"name"`
	CNPJ    string `mapstructure:"cnpj"`
	Agency  string `mapstructure:"agency"`
	Account string `mapstructure:"account"`
}

// SlipData is everything printed on a boleto slip.
type SlipData struct {
	Beneficiary    Beneficiary
	PayerName      string
	PayerDocument  string
	PayerAddress   string
	Amount         decimal.Decimal
	DueDate        time.Time
	DigitLine      string
	Barcode        string
	DocumentNumber string
	DocumentDate   time.Time
	ProcessedAt    time.Time
}

// SlipRenderer renders printable boleto slips as HTML.
type SlipRenderer struct {
	beneficiary Beneficiary
	tmpl        *template.Template
}

// NewSlipRenderer creates a renderer that prints b as the payee.
func NewSlipRenderer(b Beneficiary) *SlipRenderer {
	return &SlipRenderer{beneficiary: b, tmpl: slipTemplate}
}

// Render returns the slip for d. The configured beneficiary is used when d
// names none.
func (r *SlipRenderer) Render(d SlipData) (template.HTML, error) {
	if d.Beneficiary == (Beneficiary{}) {
		d.Beneficiary = r.beneficiary
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render slip: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// FormatBRL renders an amount as Brazilian reais, e.g. "R$ 1.234,50".
func FormatBRL(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + "R$ " + b.String() + "," + frac
}

// FormatDocument masks 11 digits as a CPF and 14 digits as a CNPJ. Other
// values are returned as is.
func FormatDocument(s string) string {
	d := Digits(s)
	switch len(d) {
	case 11:
		return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
	case 14:
		return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
	default:
		return s
	}
}

var slipTemplate = template.Must(template.New("boleto").Funcs(template.FuncMap{
	"brl":  FormatBRL,
	"doc":  FormatDocument,
	"date": func(t time.Time) string { return t.Format("02/01/2006") },
}).Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Boleto {{.DocumentNumber}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 24px; }
table { border-collapse: collapse; width: 100%; }
td { border: 1px solid #000; padding: 4px 6px; font-size: 12px; vertical-align: top; }
.label { display: block; font-size: 9px; color: #444; }
.digits { font-family: monospace; font-size: 16px; letter-spacing: 1px; }
.barcode { font-family: monospace; font-size: 11px; word-break: break-all; }
@media print { .no-print { display: none; } }
</style>
</head>
<body>
<table>
<tr><td colspan="3" class="digits">{{.DigitLine}}</td></tr>
<tr>
<td colspan="2"><span class="label">Beneficiário</span>{{.Beneficiary.Name}} - CNPJ {{doc .Beneficiary.CNPJ}}</td>
<td><span class="label">Agência / Conta</span>{{.Beneficiary.Agency}} / {{.Beneficiary.Account}}</td>
</tr>
<tr>
<td><span class="label">Data do documento</span>{{date .DocumentDate}}</td>
<td><span class="label">Número do documento</span>{{.DocumentNumber}}</td>
<td><span class="label">Data de processamento</span>{{date .ProcessedAt}}</td>
</tr>
<tr>
<td colspan="2"><span class="label">Vencimento</span>{{date .DueDate}}</td>
<td><span class="label">Valor do documento</span>{{brl .Amount}}</td>
</tr>
<tr>
<td colspan="3"><span class="label">Pagador</span>{{.PayerName}} - {{doc .PayerDocument}}<br>{{.PayerAddress}}</td>
</tr>
<tr><td colspan="3" class="barcode"><span class="label">Código de barras</span>{{.Barcode}}</td></tr>
</table>
<button class="no-print" onclick="window.print()">Imprimir</button>
</body>
</html>
`))
