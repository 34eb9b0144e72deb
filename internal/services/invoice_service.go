package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/artgrid/backend/internal/config"
	"github.com/artgrid/backend/internal/models"
	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// InvoiceService renders purchase invoices from the durable ledger rows.
// Every invoice is built from a real Purchase record; there is no
// placeholder path.
type InvoiceService struct {
	cfg  *config.Config
	tmpl *template.Template
}

func NewInvoiceService(cfg *config.Config) *InvoiceService {
	return &InvoiceService{
		cfg:  cfg,
		tmpl: template.Must(template.New("invoice").Parse(invoiceTemplate)),
	}
}

type invoiceData struct {
	InvoiceRef   string
	AssetTitle   string
	ThumbnailURL string
	CategoryName string
	UserName     string
	Amount       string
	Currency     string
	Provider     string
	PurchaseDate string
}

func (s *InvoiceService) buildData(purchase *models.Purchase) invoiceData {
	userName := purchase.User.Name
	if userName == "" {
		userName = "Customer"
	}
	return invoiceData{
		InvoiceRef:   strings.ToUpper(purchase.ID.String()[:8]),
		AssetTitle:   purchase.Asset.Title,
		ThumbnailURL: purchase.Asset.ThumbnailURL,
		CategoryName: purchase.Asset.Category.Name,
		UserName:     userName,
		Amount:       formatMinorUnits(purchase.Price),
		Currency:     purchase.Payment.Currency,
		Provider:     purchase.Payment.Provider,
		PurchaseDate: purchase.CreatedAt.Format("Jan 2, 2006 15:04 MST"),
	}
}

// RenderHTML renders the invoice document for a purchase.
func (s *InvoiceService) RenderHTML(purchase *models.Purchase) ([]byte, error) {
	var out bytes.Buffer
	if err := s.tmpl.Execute(&out, s.buildData(purchase)); err != nil {
		return nil, fmt.Errorf("failed to render invoice: %w", err)
	}
	return out.Bytes(), nil
}

// RenderPDF renders the invoice as an A4 PDF with a QR code linking to the
// asset download.
func (s *InvoiceService) RenderPDF(purchase *models.Purchase) ([]byte, error) {
	data := s.buildData(purchase)
	downloadURL := fmt.Sprintf("%s/api/v1/user/assets/%s/download", s.cfg.APIUrl, purchase.AssetID)

	// Create QR PNG in memory
	png, err := qrcode.Encode(downloadURL, qrcode.Medium, 512)
	if err != nil {
		return nil, err
	}

	// Create PDF
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, fmt.Sprintf("Invoice #%s", data.InvoiceRef))
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 6, fmt.Sprintf("Billed to: %s\nItem: %s\nCategory: %s\nAmount: %s %s\nPaid via: %s\nPurchased: %s",
		data.UserName, data.AssetTitle, data.CategoryName, data.Amount, data.Currency, data.Provider, data.PurchaseDate), "", "L", false)

	// Register image from reader
	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("qr", opt, bytes.NewReader(png))

	// Center QR on the page
	x := (210.0 - 80.0) / 2.0 // A4 width 210mm, QR size 80mm
	y := pdf.GetY() + 10
	pdf.ImageOptions("qr", x, y, 80, 80, false, opt, 0, "")

	pdf.SetY(y + 90)
	pdf.SetFont("Arial", "I", 10)
	pdf.Cell(0, 6, "Scan to download your asset.")

	// Output to buffer
	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// RenderDownloadPage renders the purchase-gated delivery document carrying
// the asset's file link.
func (s *InvoiceService) RenderDownloadPage(asset *models.Asset) []byte {
	var out bytes.Buffer
	_ = downloadTemplate.Execute(&out, map[string]string{
		"Title":   asset.Title,
		"FileURL": asset.FileURL,
	})
	return out.Bytes()
}

var downloadTemplate = template.Must(template.New("download").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>Download {{.Title}}</title>
</head>
<body style="font-family: 'Segoe UI', Arial, sans-serif; background: #f6f6f6; padding: 40px;">
  <div style="max-width: 480px; margin: 0 auto; background: #fff; border-radius: 12px; padding: 32px;">
    <h1 style="font-size: 1.3rem; color: #1976d2;">{{.Title}}</h1>
    <img src="{{.FileURL}}" alt="{{.Title}}" style="width: 100%; border-radius: 8px; margin: 16px 0;" />
    <a href="{{.FileURL}}" download style="display: inline-block; padding: 10px 24px; background: #1976d2; color: #fff; border-radius: 8px; text-decoration: none;">Download original</a>
  </div>
</body>
</html>
`))

const invoiceTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>Invoice #{{.InvoiceRef}}</title>
  <meta name="viewport" content="width=device-width, initial-scale=1.0"/>
  <style>
    body { background: #f8fafc; font-family: 'Segoe UI', Arial, sans-serif; color: #222; margin: 0; padding: 0; }
    .invoice-container { max-width: 480px; margin: 40px auto; background: #fff; border-radius: 12px; box-shadow: 0 6px 32px rgba(80,120,180,0.08); padding: 30px 24px; }
    .invoice-head { display: flex; justify-content: space-between; align-items: center; margin-bottom: 22px; }
    .invoice-id { color: #1976d2; font-weight: 600; }
    .status-pill { padding: 2px 14px; font-size: 13px; background: #e3f6e6; color: #248a3d; border-radius: 10px; font-weight: 600; }
    .asset-image { display: block; width: 100%; max-width: 260px; height: auto; margin: 18px auto; border-radius: 10px; border: 1px solid #ececec; }
    table { width: 100%; border-collapse: collapse; margin: 18px 0 10px 0; }
    th, td { padding: 10px; font-size: 15px; }
    th { color: #8b94a8; background: #f3f6fb; text-align: left; }
    .total-row td { background: #e5f4ff; font-weight: 700; color: #1976d2; }
    .footer { margin-top: 22px; font-size: 12px; color: #abb4be; text-align: right; }
  </style>
</head>
<body>
  <div class="invoice-container">
    <div class="invoice-head">
      <span class="invoice-id">Invoice #{{.InvoiceRef}}</span>
      <span class="status-pill">Paid</span>
    </div>
    <div style="margin-bottom: 16px;">
      <div><b>Billed To:</b> {{.UserName}}</div>
      <div style="font-size: 13px; color: #8ca6c2; margin-top: 2px;">{{.PurchaseDate}}</div>
    </div>
    <img class="asset-image" src="{{.ThumbnailURL}}" alt="{{.AssetTitle}}" />
    <div style="margin-bottom: 14px; color: #8c8c8c;">Category: <b>{{.CategoryName}}</b></div>
    <table>
      <tr>
        <th>Item</th>
        <th style="text-align:right;">Amount</th>
      </tr>
      <tr>
        <td>{{.AssetTitle}}</td>
        <td style="text-align:right;">{{.Amount}} {{.Currency}}</td>
      </tr>
      <tr class="total-row">
        <td>Total</td>
        <td style="text-align:right;">{{.Amount}} {{.Currency}}</td>
      </tr>
    </table>
    <div style="font-size: 13px; color: #8d8d8d;">Paid via {{.Provider}}</div>
    <div class="footer">Thank you for your purchase!</div>
  </div>
</body>
</html>
`
