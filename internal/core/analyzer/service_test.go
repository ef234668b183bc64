package analyzer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"

	"menu-analyzer/internal/core/ai/provider"
	"menu-analyzer/internal/core/ai/queue"
	"menu-analyzer/internal/core/menu"
	"menu-analyzer/internal/core/metrics"
	"menu-analyzer/internal/core/scan"
	"menu-analyzer/internal/core/storage"
	"menu-analyzer/internal/pkg/common"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testImageURL = "https://store.test/menus/menu.png"

type reply struct {
	content string
	err     error
}

type fakeGenerator struct {
	mu        sync.Mutex
	available bool
	replies   []reply
	prompts   []string
}

func (g *fakeGenerator) Available() bool { return g.available }
func (g *fakeGenerator) Model() string { return "fake-model" }

func (g *fakeGenerator) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req.Prompt)
	if len(g.replies) == 0 {
		return nil, errors.New("unexpected call")
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &provider.Response{Content: r.content, Model: "fake-model", Usage: provider.Usage{TotalTokens: 1500}}, nil
}

type fakeStore struct {
	mu       sync.Mutex
	data     []byte
	fetchErr error
	fetches  int
	deleted  []string
}

func (s *fakeStore) Name() string { return "fake" }

func (s *fakeStore) Owns(rawURL string) bool {
	return strings.HasPrefix(rawURL, "https://store.test/")
}

func (s *fakeStore) Fetch(ctx context.Context, rawURL string, maxBytes int64) (*storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return &storage.Object{Data: s.data, ContentType: "image/png"}, nil
}

func (s *fakeStore) Delete(ctx context.Context, rawURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, rawURL)
	return nil
}

func (s *fakeStore) Close() error { return nil }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fixture struct {
	gen   *fakeGenerator
	store *fakeStore
	repo  *scan.MemoryRepository
	logs  *observer.ObservedLogs
	svc   *Service
}

func newFixture(t *testing.T, mode menu.Tier, replies ...reply) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	f := &fixture{
		gen:   &fakeGenerator{available: true, replies: replies},
		store: &fakeStore{data: pngBytes(t)},
		repo:  scan.NewMemoryRepository(),
		logs:  logs,
	}
	reporter := metrics.NewReporter(metrics.Options{}, zap.New(core))
	f.svc = NewService(f.gen, f.store, nil, f.repo, reporter, Options{
		Mode:                mode,
		DeleteAfterAnalysis: true,
		MaxImageBytes:       1 << 20,
	})
	return f
}

func (f *fixture) metricsSuccess(t *testing.T) bool {
	t.Helper()
	entries := f.logs.FilterMessage("function_metrics").All()
	if len(entries) != 1 {
		t.Fatalf("function_metrics entries = %d, want 1", len(entries))
	}
	success, _ := entries[0].ContextMap()["success"].(bool)
	return success
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var ce *common.CustomError
	if !errors.As(err, &ce) {
		t.Fatalf("error %v is not a CustomError", err)
	}
	return ce.Code
}

const twoDishes = "```json\n[" +
	`{"name":"Satay","calories":600,"macros":{"protein":15,"carbs":20,"fat":30},"flags":{"diets":[],"allergens":["nuts"]}},` +
	`{"name":"Falafel Plate","calories":650,"macros":{"protein":18,"carbs":70,"fat":25},"flags":{"diets":["vegan"],"allergens":[]}}` +
	"]\n```"

func TestAnalyzeRanksAndPersists(t *testing.T) {
	f := newFixture(t, menu.TierBasic, reply{content: twoDishes})

	result, err := f.svc.Analyze(context.Background(), Input{
		ImageURL:  testImageURL,
		Prefs:     &menu.UserPreferences{Diets: []string{"Vegan"}, Allergens: []string{"nuts"}},
		UserID:    "user-1",
		RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(result.Dishes) != 2 {
		t.Fatalf("dishes = %d, want 2", len(result.Dishes))
	}
	if result.Dishes[0].Name != "Falafel Plate" || result.Dishes[0].RecommendationScore != 8 {
		t.Errorf("first dish = %s (%d)", result.Dishes[0].Name, result.Dishes[0].RecommendationScore)
	}
	if result.Dishes[1].RecommendationScore != 0 || !result.Dishes[1].HasAllergens {
		t.Errorf("second dish = %+v", result.Dishes[1])
	}
	if result.Model != "fake-model" || result.Tier != menu.TierBasic || result.TokensUsed != 1500 {
		t.Errorf("result = %+v", result)
	}
	if !strings.Contains(f.gen.prompts[0], `"diets":["vegan"]`) {
		t.Error("prompt should carry the sanitized preferences")
	}

	if result.ScanID == "" {
		t.Fatal("expected a scan id for an authenticated caller")
	}
	scans, _ := f.repo.ListScans(context.Background(), "user-1", 10)
	if len(scans) != 1 || scans[0].ID != result.ScanID || scans[0].ImageURL != testImageURL {
		t.Errorf("stored scans = %+v", scans)
	}

	if len(f.store.deleted) != 1 || f.store.deleted[0] != testImageURL {
		t.Errorf("deleted = %v", f.store.deleted)
	}
	if !f.metricsSuccess(t) {
		t.Error("metrics should record success")
	}
}

func TestAnalyzeAnonymousIsNotPersisted(t *testing.T) {
	f := newFixture(t, menu.TierBasic, reply{content: "[]"})

	result, err := f.svc.Analyze(context.Background(), Input{ImageURL: testImageURL})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.ScanID != "" || len(result.Dishes) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestAnalyzeUsesStoredPreferences(t *testing.T) {
	f := newFixture(t, menu.TierBasic, reply{content: "[]"})
	_ = f.repo.SavePreferences(context.Background(), "user-1", menu.UserPreferences{Diets: []string{"keto"}})

	if _, err := f.svc.Analyze(context.Background(), Input{ImageURL: testImageURL, UserID: "user-1"}); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !strings.Contains(f.gen.prompts[0], `"diets":["keto"]`) {
		t.Errorf("prompt did not use stored preferences:\n%s", f.gen.prompts[0])
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	f := newFixture(t, menu.TierBasic, reply{err: provider.Classify(context.DeadlineExceeded)})

	result, err := f.svc.Analyze(context.Background(), Input{ImageURL: testImageURL, UserID: "user-1"})

	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if code := errorCode(t, err); code != common.CodeDeadlineExceeded {
		t.Errorf("code = %s, want %s", code, common.CodeDeadlineExceeded)
	}
	if f.metricsSuccess(t) {
		t.Error("metrics should record failure")
	}
	if len(f.store.deleted) != 1 {
		t.Error("image should be deleted after a failed analysis")
	}
	if scans, _ := f.repo.ListScans(context.Background(), "user-1", 10); len(scans) != 0 {
		t.Errorf("failed analysis was persisted: %+v", scans)
	}
}

func TestAnalyzeAdvancedFallsBackOnMalformedOutput(t *testing.T) {
	f := newFixture(t, menu.TierAdvanced,
		reply{content: "Sorry, I can only describe this menu in words."},
		reply{content: twoDishes},
	)

	result, err := f.svc.Analyze(context.Background(), Input{ImageURL: testImageURL})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.Tier != menu.TierBasic || len(result.Dishes) != 2 {
		t.Errorf("result tier %s with %d dishes", result.Tier, len(result.Dishes))
	}
	if len(f.gen.prompts) != 2 || !strings.Contains(f.gen.prompts[0], `"menuInsights"`) {
		t.Errorf("prompts = %d", len(f.gen.prompts))
	}
	if result.TokensUsed != 3000 {
		t.Errorf("tokens = %d, want both calls counted", result.TokensUsed)
	}
}

func TestAnalyzeAdvancedSuccess(t *testing.T) {
	f := newFixture(t, menu.TierAdvanced, reply{content: `{"dishes":[{"name":"Bibimbap","calories":550}],"menuInsights":{"cuisineType":"Korean"}}`})

	result, err := f.svc.Analyze(context.Background(), Input{ImageURL: testImageURL})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.Tier != menu.TierAdvanced || result.MenuInsights == nil || result.MenuInsights.CuisineType != "Korean" {
		t.Errorf("result = %+v", result)
	}
	d := result.Dishes[0]
	if d.Confidence == nil || *d.Confidence != 0.5 || d.Category != "main" {
		t.Errorf("advanced defaults missing: %+v", d)
	}
}

func TestAnalyzeAdvancedDoesNotFallBackOnTransportErrors(t *testing.T) {
	f := newFixture(t, menu.TierAdvanced,
		reply{err: &provider.Error{Kind: provider.KindUnauthorized, Err: errors.New("bad key")}},
		reply{content: twoDishes},
	)

	_, err := f.svc.Analyze(context.Background(), Input{ImageURL: testImageURL})

	if code := errorCode(t, err); code != common.CodeInternal {
		t.Errorf("code = %s, want internal", code)
	}
	if len(f.gen.prompts) != 1 {
		t.Errorf("calls = %d, want 1", len(f.gen.prompts))
	}
	if strings.Contains(err.(*common.CustomError).Message, "bad key") {
		t.Error("upstream detail leaked into the caller message")
	}
}

func TestAnalyzeBusy(t *testing.T) {
	f := newFixture(t, menu.TierBasic, reply{err: queue.ErrFull})

	_, err := f.svc.Analyze(context.Background(), Input{ImageURL: testImageURL})
	if code := errorCode(t, err); code != common.CodeResourceExhausted {
		t.Errorf("code = %s, want resource-exhausted", code)
	}
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		fetchErr error
		data     []byte
		admitted bool
	}{
		{name: "empty url", url: "  "},
		{name: "foreign url", url: "https://evil.example.com/menu.png"},
		{name: "foreign bucket", url: "gs://someone-elses-bucket/backups/db.sql"},
		{name: "missing object", url: testImageURL, fetchErr: storage.ErrNotFound, admitted: true},
		{name: "too large", url: testImageURL, fetchErr: storage.ErrTooLarge, admitted: true},
		{name: "not an image", url: testImageURL, data: []byte("hello"), admitted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, menu.TierBasic)
			f.store.fetchErr = tt.fetchErr
			if tt.data != nil {
				f.store.data = tt.data
			}

			result, err := f.svc.Analyze(context.Background(), Input{ImageURL: tt.url})

			if result != nil {
				t.Errorf("result = %+v, want nil", result)
			}
			if code := errorCode(t, err); code != common.CodeInvalidArgument {
				t.Errorf("code = %s, want invalid-argument", code)
			}
			if len(f.gen.prompts) != 0 {
				t.Error("AI should not be called for invalid input")
			}
			// 只有屬於本儲存的網址才會被刪除
			if !tt.admitted && len(f.store.deleted) != 0 {
				t.Errorf("deleted = %v, want nothing for a rejected url", f.store.deleted)
			}
		})
	}
}

func TestAnalyzeAIUnavailable(t *testing.T) {
	f := newFixture(t, menu.TierBasic)
	f.gen.available = false

	_, err := f.svc.Analyze(context.Background(), Input{ImageURL: testImageURL})

	if code := errorCode(t, err); code != common.CodeInternal {
		t.Errorf("code = %s, want internal", code)
	}
	if f.store.fetches != 0 {
		t.Error("image should not be fetched when AI is unavailable")
	}
}
