package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quotedesk/approval-api/internal/models"
	"github.com/quotedesk/approval-api/pkg/export"
	appErrors "github.com/quotedesk/approval-api/pkg/errors"
)

// ExportFormat enumerates supported audit export encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type workflowLister interface {
	List(ctx context.Context) ([]models.Workflow, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders the workflow audit view as a downloadable
// tabular document.
type ExportService struct {
	workflows workflowLister
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(workflows workflowLister, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{workflows: workflows, csv: csv, pdf: pdf, logger: logger}
}

// ExportResult carries rendered bytes plus download metadata.
type ExportResult struct {
	Data        []byte
	ContentType string
	Filename    string
}

// AuditReport renders every workflow into the requested format.
func (s *ExportService) AuditReport(ctx context.Context, format ExportFormat) (*ExportResult, error) {
	workflows, err := s.workflows.List(ctx)
	if err != nil {
		return nil, err
	}

	dataset := buildAuditDataset(workflows)
	stamp := time.Now().UTC().Format("20060102-150405")

	switch format {
	case ExportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			Data:        data,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("workflow-audit-%s.csv", stamp),
		}, nil
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, "Workflow Audit Report")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			Data:        data,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("workflow-audit-%s.pdf", stamp),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func buildAuditDataset(workflows []models.Workflow) export.Dataset {
	headers := []string{"ID", "Client", "Document", "Amount", "Status", "Step", "Pending Role", "Updated"}
	rows := make([]map[string]string, 0, len(workflows))
	for i := range workflows {
		wf := &workflows[i]
		pendingRole := ""
		if !wf.Status.Terminal() {
			if step := wf.ActiveStep(); step != nil {
				pendingRole = string(step.Role)
			}
		}
		rows = append(rows, map[string]string{
			"ID":           wf.ID,
			"Client":       wf.ClientName,
			"Document":     wf.DocumentType,
			"Amount":       fmt.Sprintf("%.2f", wf.Amount),
			"Status":       string(wf.Status),
			"Step":         fmt.Sprintf("%d/%d", wf.CurrentStep, wf.TotalSteps),
			"Pending Role": pendingRole,
			"Updated":      wf.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// ParseExportFormat normalises the query parameter, defaulting to CSV.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return ExportFormatCSV, nil
	case "pdf":
		return ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
