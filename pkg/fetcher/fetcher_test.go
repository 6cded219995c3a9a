package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const samplePage = `<!DOCTYPE html><html><head><title>관리비 조회</title></head><body><span class="costPay">257,430</span></body></html>`

// fakeSession records navigation and serves canned HTML.
type fakeSession struct {
	html        string
	navigateErr error
	visited     []string
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.visited = append(s.visited, url)
	return s.navigateErr
}
func (s *fakeSession) Evaluate(context.Context, string, any) error { return nil }
func (s *fakeSession) FillField(context.Context, string, string) error { return nil }
func (s *fakeSession) SetFieldValue(context.Context, string, string) error { return nil }
func (s *fakeSession) SetVisible(context.Context, string, bool) error { return nil }
func (s *fakeSession) WaitForNetworkIdle(context.Context) error { return nil }
func (s *fakeSession) Cookies(context.Context) ([]Cookie, error) { return nil, nil }
func (s *fakeSession) HTML(context.Context) (string, error) { return s.html, nil }
func (s *fakeSession) Close() error { return nil }

// --- ReplayFetcher Tests ---

func TestNewReplay_MissingDir(t *testing.T) {
	_, err := NewReplay(ReplayConfig{Dir: filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Fatal("expected error for missing replay dir")
	}
}

func TestNewReplay_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.html")
	if err := os.WriteFile(path, []byte(samplePage), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewReplay(ReplayConfig{Dir: path}); err == nil {
		t.Fatal("expected error for file as replay dir")
	}
}

func TestReplayFetcher_Fetch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(SnapshotPath(dir, "cost"), []byte(samplePage), 0o600); err != nil {
		t.Fatal(err)
	}

	f, err := NewReplay(ReplayConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewReplay() error = %v", err)
	}
	defer f.Close()

	content, err := f.Fetch(context.Background(), "https://portal.example/cost", Options{Page: "cost"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(content.HTML, "costPay") {
		t.Errorf("unexpected HTML: %q", content.HTML)
	}
	if content.Title != "관리비 조회" {
		t.Errorf("Title = %q", content.Title)
	}
	if content.URL != "https://portal.example/cost" || content.Page != "cost" {
		t.Errorf("unexpected content metadata: %+v", content)
	}
	if f.Type() != "replay" {
		t.Errorf("Type() = %q", f.Type())
	}
}

func TestReplayFetcher_RepeatedFetch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(SnapshotPath(dir, "cost"), []byte(samplePage), 0o600); err != nil {
		t.Fatal(err)
	}
	f, _ := NewReplay(ReplayConfig{Dir: dir})

	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(context.Background(), "", Options{Page: "cost"}); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
}

func TestReplayFetcher_MissingPage(t *testing.T) {
	f, err := NewReplay(ReplayConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewReplay() error = %v", err)
	}

	_, err = f.Fetch(context.Background(), "", Options{Page: "history"})
	if !errors.Is(err, ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
}

func TestReplayFetcher_RequiresPageName(t *testing.T) {
	f, _ := NewReplay(ReplayConfig{Dir: t.TempDir()})
	if _, err := f.Fetch(context.Background(), "https://portal.example/", Options{}); err == nil {
		t.Error("expected error without page name")
	}
}

func TestReplayFetcher_EmptyPage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(SnapshotPath(dir, "unit"), []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	f, _ := NewReplay(ReplayConfig{Dir: dir})

	_, err := f.Fetch(context.Background(), "", Options{Page: "unit"})
	if !errors.Is(err, ErrEmptyPage) {
		t.Errorf("expected ErrEmptyPage, got %v", err)
	}
}

// --- SessionFetcher Tests ---

func TestSessionFetcher_Fetch(t *testing.T) {
	s := &fakeSession{html: samplePage}
	f := NewSession(s, SessionConfig{})

	content, err := f.Fetch(context.Background(), "https://portal.example/cost", Options{Page: "cost"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(s.visited) != 1 || s.visited[0] != "https://portal.example/cost" {
		t.Errorf("visited = %v", s.visited)
	}
	if content.HTML != samplePage || content.Title != "관리비 조회" {
		t.Errorf("unexpected content: %+v", content)
	}
	if content.FetchedAt.IsZero() {
		t.Error("FetchedAt should be set")
	}
}

func TestSessionFetcher_Snapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snap")
	f := NewSession(&fakeSession{html: samplePage}, SessionConfig{SnapshotDir: dir})

	if _, err := f.Fetch(context.Background(), "https://portal.example/cost", Options{Page: "cost"}); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	data, err := os.ReadFile(SnapshotPath(dir, "cost"))
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if string(data) != samplePage {
		t.Errorf("snapshot content mismatch: %q", data)
	}

	// A snapshot can be served back by the replay fetcher.
	r, err := NewReplay(ReplayConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewReplay() error = %v", err)
	}
	replayed, err := r.Fetch(context.Background(), "", Options{Page: "cost"})
	if err != nil {
		t.Fatalf("replay Fetch() error = %v", err)
	}
	if replayed.HTML != samplePage {
		t.Errorf("replayed HTML mismatch")
	}
}

func TestSessionFetcher_NavigateError(t *testing.T) {
	boom := errors.New("net::ERR_CONNECTION_RESET")
	f := NewSession(&fakeSession{navigateErr: boom}, SessionConfig{})

	_, err := f.Fetch(context.Background(), "https://portal.example/", Options{Page: "unit"})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped navigate error, got %v", err)
	}
}

func TestSessionFetcher_EmptyHTML(t *testing.T) {
	f := NewSession(&fakeSession{html: ""}, SessionConfig{})

	_, err := f.Fetch(context.Background(), "https://portal.example/", Options{Page: "unit"})
	if !errors.Is(err, ErrEmptyPage) {
		t.Errorf("expected ErrEmptyPage, got %v", err)
	}
}

func TestSessionFetcher_SettleHonoursCancel(t *testing.T) {
	f := NewSession(&fakeSession{html: samplePage}, SessionConfig{Settle: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "https://portal.example/", Options{Page: "unit"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// --- Sleep Tests ---

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) error = %v", err)
	}
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep(1ms) error = %v", err)
	}
}
