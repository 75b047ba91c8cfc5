package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gymdesk/internal/domain"

	"github.com/xuri/excelize/v2"
)

type exportCache struct {
	mu   sync.Mutex
	kv   map[string]string
	sets map[string][]string
}

func newExportCache() *exportCache {
	return &exportCache{kv: map[string]string{}, sets: map[string][]string{}}
}

func (c *exportCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kv[key] = value.(string)
	return nil
}

func (c *exportCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.kv[key]
	if !ok {
		return "", errors.New("nil")
	}
	return v, nil
}

func (c *exportCache) SAdd(ctx context.Context, key string, members ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range members {
		s := m.(string)
		found := false
		for _, existing := range c.sets[key] {
			if existing == s {
				found = true
			}
		}
		if !found {
			c.sets[key] = append(c.sets[key], s)
		}
	}
	return nil
}

func (c *exportCache) SMembers(ctx context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sets[key]...), nil
}

type memFiles struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func (f *memFiles) Save(ctx context.Context, name string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[name] = data
	return name, nil
}

func (f *memFiles) URL(ctx context.Context, name string) (string, error) {
	return "http://files.local/" + name, nil
}

func (f *memFiles) file() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, data := range f.saved {
		return data
	}
	return nil
}

type exportEvents struct {
	progress []float64
	done     chan string
	failed   chan string
	mu       sync.Mutex
}

func newExportEvents() *exportEvents {
	return &exportEvents{done: make(chan string, 1), failed: make(chan string, 1)}
}

func (e *exportEvents) NotifyExportProgress(ctx context.Context, adminID, exportID string, progress float64, stage string) error {
	e.mu.Lock()
	e.progress = append(e.progress, progress)
	e.mu.Unlock()
	return nil
}

func (e *exportEvents) NotifyExportComplete(ctx context.Context, adminID, exportID, url, filename string) error {
	e.done <- url
	return nil
}

func (e *exportEvents) NotifyExportFailed(ctx context.Context, adminID, exportID, errMsg string) error {
	e.failed <- errMsg
	return nil
}

type staticHistory struct {
	h   *ClientHistory
	err error
}

func (s staticHistory) History(ctx context.Context, clientID string) (*ClientHistory, error) {
	return s.h, s.err
}

func sampleHistory() *ClientHistory {
	due := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	paid := pay(mkPayment("p1", "c1", strPtr("plan-1"), 1, "100", base))
	paid.DueDate = &due
	return &ClientHistory{
		Profile: domain.Profile{ID: "c1", FullName: "Ana Souza"},
		Payments: []domain.Payment{
			paid,
			mkPayment("p2", "c1", strPtr("plan-1"), 2, "100", base),
		},
		Plans: []domain.PaymentPlan{mkPlan("plan-1", "c1", "300", base)},
	}
}

func pay(p domain.Payment) domain.Payment {
	at := base.Add(time.Hour)
	method := "pix"
	p.Status = domain.PaymentPaid
	p.PaidAt = &at
	p.PaymentMethod = &method
	return p
}

func TestBuildHistoryWorkbook(t *testing.T) {
	var calls int
	data, err := buildHistoryWorkbook(sampleHistory(), func(done, total int) { calls++ })
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one progress callback, got %d", calls)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Pagamentos")
	if err != nil {
		t.Fatalf("payments sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 payment rows, got %d", len(rows))
	}
	if rows[0][0] != "Parcela" || rows[1][0] != "1/3" || rows[1][2] != "2025-03-01" || rows[1][4] != "pix" {
		t.Errorf("unexpected payment row %v", rows[1])
	}

	plans, err := f.GetRows("Planos")
	if err != nil {
		t.Fatalf("plans sheet: %v", err)
	}
	if len(plans) != 2 || plans[1][0] != "plan-1" || plans[1][2] != "3" {
		t.Errorf("unexpected plan rows %v", plans)
	}
}

func TestStartHistoryExport(t *testing.T) {
	cache := newExportCache()
	files := &memFiles{}
	events := newExportEvents()
	svc := NewExportService(staticHistory{h: sampleHistory()}, cache, files, events)

	id, err := svc.StartHistoryExport(context.Background(), "admin-1", "c1")
	if err != nil {
		t.Fatalf("start export: %v", err)
	}

	select {
	case url := <-events.done:
		if url == "" {
			t.Error("expected file url")
		}
	case msg := <-events.failed:
		t.Fatalf("export failed: %s", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("export did not finish")
	}

	if _, err := excelize.OpenReader(bytes.NewReader(files.file())); err != nil {
		t.Fatalf("stored file is not a workbook: %v", err)
	}

	events.mu.Lock()
	last := events.progress[len(events.progress)-1]
	events.mu.Unlock()
	if last != 100 {
		t.Errorf("final progress = %v", last)
	}

	view, err := svc.GetExport(context.Background(), id, "admin-1")
	if err != nil {
		t.Fatalf("get export: %v", err)
	}
	if view["progress"] != float64(100) || view["client_id"] != "c1" {
		t.Errorf("unexpected view %v", view)
	}

	if _, err := svc.GetExport(context.Background(), id, "admin-2"); err == nil {
		t.Error("other admins must not see the export")
	}

	list, err := svc.GetExports(context.Background(), "admin-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("GetExports = %v, %v", list, err)
	}
	if other, _ := svc.GetExports(context.Background(), "admin-2"); len(other) != 0 {
		t.Errorf("expected no exports for admin-2, got %d", len(other))
	}
}

func TestStartHistoryExport_SaveFailure(t *testing.T) {
	events := newExportEvents()
	svc := NewExportService(staticHistory{h: sampleHistory()}, newExportCache(), &memFiles{err: errBoom}, events)

	if _, err := svc.StartHistoryExport(context.Background(), "admin-1", "c1"); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-events.failed:
		if msg == "" {
			t.Error("expected failure message")
		}
	case <-events.done:
		t.Fatal("export should fail")
	case <-time.After(5 * time.Second):
		t.Fatal("export did not finish")
	}
}

func TestStartHistoryExport_UnknownClient(t *testing.T) {
	svc := NewExportService(staticHistory{err: ErrClientNotFound}, newExportCache(), &memFiles{}, nil)

	if _, err := svc.StartHistoryExport(context.Background(), "admin-1", "ghost"); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestHumanizeAgo(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{-time.Minute, "agora mesmo"},
		{10 * time.Second, "agora mesmo"},
		{time.Minute, "há 1 minuto"},
		{45 * time.Minute, "há 45 minutos"},
		{3 * time.Hour, "há 3 horas"},
		{24 * time.Hour, "há 1 dia"},
		{40 * 24 * time.Hour, "01/05/2025 12:00"},
	}
	for _, tc := range cases {
		if got := humanizeAgo(now.Add(-tc.ago), now); got != tc.want {
			t.Errorf("humanizeAgo(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}
}
