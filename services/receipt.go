package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/grumming/grumming-app-sub004/config"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

// Uploader stores a rendered file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// CloudinaryUploader stores receipts as raw assets.
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryUploader returns nil, nil when Cloudinary is not configured.
func NewCloudinaryUploader(cfg config.CloudinaryConfig) (*CloudinaryUploader, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("error initializing cloudinary: %w", err)
	}
	return &CloudinaryUploader{cld: cld, folder: cfg.Folder}, nil
}

func (u *CloudinaryUploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	res, err := u.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     name,
		Folder:       u.folder,
		ResourceType: "raw",
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload failed: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload failed: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

// ReceiptStore records where a receipt was uploaded.
type ReceiptStore interface {
	SetReceiptURL(ctx context.Context, orderID, url string) error
}

// ReceiptService renders booking receipts and emails them.
type ReceiptService struct {
	mailer   Mailer
	uploader Uploader
	store    ReceiptStore
	log      *logger.Logger
}

// NewReceiptService wires the service; uploader may be nil.
func NewReceiptService(mailer Mailer, uploader Uploader, store ReceiptStore, log *logger.Logger) *ReceiptService {
	return &ReceiptService{mailer: mailer, uploader: uploader, store: store, log: orDefault(log)}
}

// Render builds the receipt PDF with a QR code carrying the booking and payment references.
func (s *ReceiptService) Render(req models.ReceiptRequest) ([]byte, error) {
	qr, err := qrcode.Encode(fmt.Sprintf("booking:%s|payment:%s", req.BookingID, req.RazorpayPaymentID), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("error generating receipt QR code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 12, "Booking Receipt")
	pdf.Ln(16)

	rows := [][2]string{
		{"Booking reference", bookingRef(req)},
		{"Service", req.ServiceName},
		{"Amount paid", formatAmount(req)},
		{"Order ID", req.RazorpayOrderID},
		{"Payment ID", req.RazorpayPaymentID},
		{"Paid at", req.PaidAt.Format("02 Jan 2006 15:04 MST")},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(50, 9, row[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(120, 9, pdf.UnicodeTranslatorFromDescriptor("")(row[1]), "1", 1, "L", false, 0, "")
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("booking-qr", opts, bytes.NewReader(qr))
	pdf.ImageOptions("booking-qr", 75, pdf.GetY()+10, 60, 60, false, opts, 0, "")

	pdf.SetY(pdf.GetY() + 75)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "Show this code at the salon to check in.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("error generating receipt PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Send renders, optionally uploads and emails the receipt.
func (s *ReceiptService) Send(ctx context.Context, req models.ReceiptRequest) error {
	if s.mailer == nil {
		return fmt.Errorf("email provider not configured")
	}
	pdf, err := s.Render(req)
	if err != nil {
		return err
	}

	filename := "receipt_" + bookingRef(req)
	var url string
	if s.uploader != nil {
		if url, err = s.uploader.Upload(ctx, filename, pdf); err != nil {
			s.log.Warn("Receipt upload failed for booking %s: %v", req.BookingID, err)
			url = ""
		} else if s.store != nil {
			if err := s.store.SetReceiptURL(ctx, req.RazorpayOrderID, url); err != nil {
				s.log.Warn("Could not save receipt url for order %s: %v", req.RazorpayOrderID, err)
			}
		}
	}

	err = s.mailer.Send(ctx, EmailMessage{
		To:          req.Email,
		Subject:     "Your booking is confirmed",
		HTML:        receiptEmailBody(req.ServiceName, formatAmount(req), bookingRef(req), url),
		Attachments: []Attachment{{Filename: filename + ".pdf", Content: pdf}},
	})
	if err != nil {
		return err
	}
	s.log.Info("Receipt emailed for booking %s", req.BookingID)
	return nil
}

// HandleReceiptEvent is the Kafka handler for receipt.requested.
func (s *ReceiptService) HandleReceiptEvent(ctx context.Context, data json.RawMessage) error {
	var req models.ReceiptRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid receipt event: %w", err)
	}
	if req.Email == "" {
		return fmt.Errorf("invalid recipient in receipt event")
	}
	return s.Send(ctx, req)
}

func bookingRef(req models.ReceiptRequest) string {
	return req.BookingID.String()[:8]
}

func formatAmount(req models.ReceiptRequest) string {
	return fmt.Sprintf("%s %s", req.Currency, req.Amount.StringFixed(2))
}
