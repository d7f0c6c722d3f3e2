package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Renderer подменяется в тестах
type Renderer interface {
	RenderReceipt(data ReceiptData) ([]byte, error)
}

type ReceiptData struct {
	CheckoutID        string
	ProviderSessionID string
	Customer          string
	Email             string
	PlanName          string
	Target            string // "account" или "listing #12"
	Amount            int64  // whole currency units
	Currency          string
	PaidAt            time.Time
	ValidDays         int
}

// ReceiptGenerator renders payment receipts in memory.
type ReceiptGenerator struct {
	FontPath string // путь до TTF; если пусто, встроенный Helvetica
	fontName string
}

func NewReceiptGenerator(fontPath string) *ReceiptGenerator {
	return &ReceiptGenerator{FontPath: fontPath}
}

func (g *ReceiptGenerator) RenderReceipt(data ReceiptData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Receipt "+data.CheckoutID, true)
	pdf.SetAuthor("Realty", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	g.setupFont(pdf)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, "PAYMENT RECEIPT", "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 7, data.PaidAt.UTC().Format("02.01.2006 15:04 MST"), "", 1, "C", false, 0, "")
	g.hr(pdf)

	g.sectionTitle(pdf, "Customer")
	g.kvLine(pdf, "Name", data.Customer)
	if data.Email != "" {
		g.kvLine(pdf, "Email", data.Email)
	}
	g.hr(pdf)

	g.sectionTitle(pdf, "Purchase")
	g.kvLine(pdf, "Plan", data.PlanName)
	g.kvLine(pdf, "Applies to", data.Target)
	if data.ValidDays > 0 {
		g.kvLine(pdf, "Period", fmt.Sprintf("%d days", data.ValidDays))
	}
	g.kvLine(pdf, "Amount", fmt.Sprintf("%d.00 %s", data.Amount, strings.ToUpper(data.Currency)))
	g.hr(pdf)

	g.sectionTitle(pdf, "Reference")
	g.kvLine(pdf, "Checkout", data.CheckoutID)
	if data.ProviderSessionID != "" {
		g.kvLine(pdf, "Processor ref", data.ProviderSessionID)
	}

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 9)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *ReceiptGenerator) setupFont(pdf *gofpdf.Fpdf) {
	if g.FontPath == "" {
		g.fontName = "Helvetica"
		return
	}
	g.fontName = "DejaVu"
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
}

func (g *ReceiptGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *ReceiptGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *ReceiptGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}
