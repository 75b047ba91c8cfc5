package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"gymdesk/internal/domain"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type ExportCache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SAdd(ctx context.Context, key string, members ...any) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

type FileStore interface {
	Save(ctx context.Context, fileName string, data []byte) (string, error)
	URL(ctx context.Context, savedName string) (string, error)
}

type ExportNotifier interface {
	NotifyExportProgress(ctx context.Context, adminID, exportID string, progress float64, stage string) error
	NotifyExportComplete(ctx context.Context, adminID, exportID, url, filename string) error
	NotifyExportFailed(ctx context.Context, adminID, exportID, errMsg string) error
}

type HistoryReader interface {
	History(ctx context.Context, clientID string) (*ClientHistory, error)
}

type ExportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	AdminID  string    `json:"admin_id"`
	ClientID string    `json:"client_id"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Error    *string   `json:"error"`
	Created  time.Time `json:"created"`
}

const (
	exportSetKey = "export_ids"
	exportTTL    = 20 * time.Minute

	exportTypeHistory = "client_history"
)

type ExportService struct {
	history HistoryReader
	cache   ExportCache
	files   FileStore
	ws      ExportNotifier
}

func NewExportService(history HistoryReader, cache ExportCache, files FileStore, ws ExportNotifier) *ExportService {
	return &ExportService{history: history, cache: cache, files: files, ws: ws}
}

func (s *ExportService) saveStatus(ctx context.Context, st *ExportStatus) error {
	if s.cache == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.cache.SAdd(ctx, exportSetKey, st.Key)
}

func (s *ExportService) progress(ctx context.Context, st *ExportStatus, progress float64, stage string) {
	st.Progress = progress
	_ = s.saveStatus(ctx, st)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, st.AdminID, st.Key, progress, stage)
	}
}

func (s *ExportService) fail(ctx context.Context, st *ExportStatus, err error) {
	errStr := err.Error()
	log.Printf("[EXPORT] %s: %s", st.Key, errStr)
	st.Error = &errStr
	st.Progress = 100
	_ = s.saveStatus(ctx, st)
	if s.ws != nil {
		_ = s.ws.NotifyExportFailed(ctx, st.AdminID, st.Key, errStr)
	}
}

// StartHistoryExport queues an XLSX export of the client's payments and plans
// and returns its id. The file is generated in the background.
func (s *ExportService) StartHistoryExport(ctx context.Context, adminID, clientID string) (string, error) {
	if s.history == nil {
		return "", errors.New("history source not configured")
	}
	// fail fast on unknown clients instead of producing a failed export
	if _, err := s.history.History(ctx, clientID); err != nil {
		return "", err
	}

	status := &ExportStatus{
		Key:      fmt.Sprintf("exports:%s", uuid.NewString()),
		Type:     exportTypeHistory,
		AdminID:  adminID,
		ClientID: clientID,
		Created:  time.Now(),
	}
	_ = s.saveStatus(ctx, status)

	go s.runHistoryExport(context.Background(), status)

	return status.Key, nil
}

func (s *ExportService) runHistoryExport(ctx context.Context, status *ExportStatus) {
	h, err := s.history.History(ctx, status.ClientID)
	if err != nil {
		s.fail(ctx, status, fmt.Errorf("load history: %w", err))
		return
	}
	s.progress(ctx, status, 10, "loaded")

	data, err := buildHistoryWorkbook(h, func(done, total int) {
		raw := 10 + float64(done)/float64(total)*80
		s.progress(ctx, status, math.Round(raw), "generating")
	})
	if err != nil {
		s.fail(ctx, status, fmt.Errorf("build workbook: %w", err))
		return
	}

	if s.files == nil {
		s.fail(ctx, status, errors.New("file storage not configured"))
		return
	}

	fileName := fmt.Sprintf("historico_%s_%s.xlsx", status.ClientID, time.Now().Format("20060102_150405"))
	s.progress(ctx, status, 95, "uploading")

	saved, err := s.files.Save(ctx, fileName, data)
	if err != nil {
		s.fail(ctx, status, fmt.Errorf("save export failed: %w", err))
		return
	}
	url, err := s.files.URL(ctx, saved)
	if err != nil {
		s.fail(ctx, status, fmt.Errorf("build file url: %w", err))
		return
	}

	status.FileURL = &url
	s.progress(ctx, status, 100, "ready")
	if s.ws != nil {
		_ = s.ws.NotifyExportComplete(ctx, status.AdminID, status.Key, url, fileName)
	}
}

type paymentColumn struct {
	Header string
	Value  func(p domain.Payment) any
}

var paymentColumns = []paymentColumn{
	{Header: "Parcela", Value: func(p domain.Payment) any {
		if p.TotalInstallments == 0 {
			return p.InstallmentNumber
		}
		return fmt.Sprintf("%d/%d", p.InstallmentNumber, p.TotalInstallments)
	}},
	{Header: "Valor", Value: func(p domain.Payment) any { return p.Amount.InexactFloat64() }},
	{Header: "Vencimento", Value: func(p domain.Payment) any { return datePtr(p.DueDate) }},
	{Header: "Pago em", Value: func(p domain.Payment) any { return timePtr(p.PaidAt) }},
	{Header: "Método", Value: func(p domain.Payment) any { return strOrEmpty(p.PaymentMethod) }},
	{Header: "Status", Value: func(p domain.Payment) any { return string(p.Status) }},
	{Header: "Plano", Value: func(p domain.Payment) any { return strOrEmpty(p.PlanID) }},
	{Header: "Criado em", Value: func(p domain.Payment) any { return p.CreatedAt.Format("2006-01-02 15:04:05") }},
}

type planColumn struct {
	Header string
	Value  func(p domain.PaymentPlan) any
}

var planColumns = []planColumn{
	{Header: "ID", Value: func(p domain.PaymentPlan) any { return p.ID }},
	{Header: "Total", Value: func(p domain.PaymentPlan) any { return p.TotalAmount.InexactFloat64() }},
	{Header: "Parcelas", Value: func(p domain.PaymentPlan) any { return p.Installments }},
	{Header: "Valor da parcela", Value: func(p domain.PaymentPlan) any { return p.InstallmentAmount.InexactFloat64() }},
	{Header: "Status", Value: func(p domain.PaymentPlan) any { return string(p.Status) }},
	{Header: "Início", Value: func(p domain.PaymentPlan) any { return p.StartDate.Format("2006-01-02") }},
	{Header: "Criado em", Value: func(p domain.PaymentPlan) any { return p.CreatedAt.Format("2006-01-02 15:04:05") }},
}

const exportChunkSize = 500

func buildHistoryWorkbook(h *ClientHistory, onProgress func(done, total int)) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const paymentsSheet, plansSheet = "Pagamentos", "Planos"
	if err := f.SetSheetName(f.GetSheetName(0), paymentsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(plansSheet); err != nil {
		return nil, err
	}
	_ = f.SetDocProps(&excelize.DocProperties{Creator: "gymdesk", Title: h.Profile.FullName})

	for i, col := range paymentColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(paymentsSheet, cell, col.Header)
	}

	total := len(h.Payments)
	for i, p := range h.Payments {
		for colIdx, col := range paymentColumns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, i+2)
			_ = f.SetCellValue(paymentsSheet, cell, col.Value(p))
		}
		if onProgress != nil && ((i+1)%exportChunkSize == 0 || i == total-1) {
			onProgress(i+1, total)
		}
	}

	for i, col := range planColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(plansSheet, cell, col.Header)
	}
	for i, p := range h.Plans {
		for colIdx, col := range planColumns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, i+2)
			_ = f.SetCellValue(plansSheet, cell, col.Value(p))
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ExportService) GetExports(ctx context.Context, adminID string) ([]map[string]any, error) {
	if s.cache == nil {
		return nil, errors.New("redis client not configured")
	}

	keys, err := s.cache.SMembers(ctx, exportSetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get export keys: %w", err)
	}

	var statuses []ExportStatus
	for _, key := range keys {
		data, err := s.cache.Get(ctx, key)
		if err != nil {
			continue
		}
		var st ExportStatus
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			continue
		}
		if st.AdminID == adminID {
			statuses = append(statuses, st)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})

	exports := make([]map[string]any, 0, len(statuses))
	for _, st := range statuses {
		exports = append(exports, exportView(st))
	}
	return exports, nil
}

func (s *ExportService) GetExport(ctx context.Context, exportID, adminID string) (map[string]any, error) {
	if s.cache == nil {
		return nil, errors.New("redis client not configured")
	}

	data, err := s.cache.Get(ctx, exportID)
	if err != nil {
		return nil, errors.New("export not found")
	}

	var st ExportStatus
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to parse export status: %w", err)
	}
	if st.AdminID != adminID {
		return nil, errors.New("export not found")
	}

	return exportView(st), nil
}

func exportView(st ExportStatus) map[string]any {
	return map[string]any{
		"key":        st.Key,
		"type":       st.Type,
		"client_id":  st.ClientID,
		"progress":   st.Progress,
		"file_url":   st.FileURL,
		"error":      st.Error,
		"created_at": humanizeAgo(st.Created, time.Now()),
	}
}

func humanizeAgo(t, now time.Time) string {
	if t.After(now) {
		return "agora mesmo"
	}

	minutes := int(now.Sub(t).Minutes())
	if minutes < 1 {
		return "agora mesmo"
	}
	if minutes < 60 {
		return fmt.Sprintf("há %d %s", minutes, plural(minutes, "minuto", "minutos"))
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("há %d %s", hours, plural(hours, "hora", "horas"))
	}
	days := hours / 24
	if days < 30 {
		return fmt.Sprintf("há %d %s", days, plural(days, "dia", "dias"))
	}
	return t.Format("02/01/2006 15:04")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func timePtr(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Format("2006-01-02 15:04:05")
}

func datePtr(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Format("2006-01-02")
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
