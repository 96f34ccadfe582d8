package catalog

import (
	"context"
	"fmt"
	"testing"

	"vtex/migrator/internal/domain"
	"vtex/migrator/internal/domain/task"
	"vtex/migrator/internal/state"
)

type fakeRehoster struct {
	failURLs map[string]bool
	calls    int
}

func (f *fakeRehoster) Rehost(_ context.Context, sourceURL, fileName string) (string, error) {
	f.calls++
	if f.failURLs[sourceURL] {
		return "", fmt.Errorf("download %s: HTTP 404", sourceURL)
	}
	return "https://img.example.com/bucket/" + fileName, nil
}

func TestEnrichSkuFirstImageIsMain(t *testing.T) {
	gateway := newFakeGateway()
	e := NewEnricher(gateway, &fakeRehoster{}, state.NewMemoryManager(), nil)

	report := e.EnrichSku(context.Background(), 42, "Default", []string{
		"https://legacy/img/a.jpg",
		"https://legacy/img/b.jpg",
	})

	if report.TotalAssociated != 2 || report.TotalFailed != 0 {
		t.Fatalf("report = %d associated, %d failed, want 2/0", report.TotalAssociated, report.TotalFailed)
	}

	files := gateway.associations[42]
	if len(files) != 2 {
		t.Fatalf("associated %d files, want 2", len(files))
	}
	if !files[0].IsMain || files[1].IsMain {
		t.Fatalf("IsMain = (%v, %v), want only the first", files[0].IsMain, files[1].IsMain)
	}
	if files[0].FileName != "42_1.jpg" || files[1].FileName != "42_2.jpg" {
		t.Fatalf("file names = (%s, %s), want 42_1.jpg and 42_2.jpg", files[0].FileName, files[1].FileName)
	}
}

func TestEnrichSkuRecordsFailureAndContinues(t *testing.T) {
	gateway := newFakeGateway()
	rehoster := &fakeRehoster{failURLs: map[string]bool{"https://legacy/img/broken.jpg": true}}
	e := NewEnricher(gateway, rehoster, state.NewMemoryManager(), nil)

	report := e.EnrichSku(context.Background(), 42, "Default", []string{
		"https://legacy/img/broken.jpg",
		"https://legacy/img/ok.jpg",
	})

	if report.TotalProcessed != 2 || report.TotalAssociated != 1 || report.TotalFailed != 1 {
		t.Fatalf("report = %d/%d/%d, want processed 2, associated 1, failed 1",
			report.TotalProcessed, report.TotalAssociated, report.TotalFailed)
	}
	if report.Images[0].Status != domain.ImageFailed || report.Images[0].Error == "" {
		t.Fatalf("first image = %+v, want recorded failure", report.Images[0])
	}
	if report.Images[1].Status != domain.ImageAssociated {
		t.Fatalf("second image = %+v, want associated despite earlier failure", report.Images[1])
	}
}

func TestEnrichSkuConflictCountsAsSuccess(t *testing.T) {
	gateway := newFakeGateway()
	gateway.associateConflict["42_1.jpg"] = true
	e := NewEnricher(gateway, &fakeRehoster{}, state.NewMemoryManager(), nil)

	report := e.EnrichSku(context.Background(), 42, "Default", []string{"https://legacy/img/a.jpg"})

	if report.TotalAssociated != 1 || report.TotalFailed != 0 {
		t.Fatalf("report = %d associated, %d failed, want conflict treated as success",
			report.TotalAssociated, report.TotalFailed)
	}
}

func TestEnrichSkuSkipsAlreadyEnriched(t *testing.T) {
	gateway := newFakeGateway()
	rehoster := &fakeRehoster{}
	e := NewEnricher(gateway, rehoster, state.NewMemoryManager(), nil)
	ctx := context.Background()

	e.EnrichSku(ctx, 42, "Default", []string{"https://legacy/img/a.jpg"})
	callsAfterFirst := rehoster.calls

	report := e.EnrichSku(ctx, 42, "Default", []string{"https://legacy/img/a.jpg"})
	if rehoster.calls != callsAfterFirst {
		t.Fatalf("re-enrichment re-hosted images (%d calls, want %d)", rehoster.calls, callsAfterFirst)
	}
	if report.TotalAssociated != 1 {
		t.Fatalf("cached report = %d associated, want 1", report.TotalAssociated)
	}
}

func TestRetryAssociationFlipsFailedEntry(t *testing.T) {
	gateway := newFakeGateway()
	gateway.associateFailOnce["42_1.jpg"] = fmt.Errorf("gateway timeout")
	e := NewEnricher(gateway, &fakeRehoster{}, state.NewMemoryManager(), nil)
	ctx := context.Background()

	report := e.EnrichSku(ctx, 42, "Default", []string{"https://legacy/img/a.jpg"})
	if report.TotalFailed != 1 {
		t.Fatalf("report failed = %d, want 1", report.TotalFailed)
	}
	failed := report.Images[0]

	err := e.RetryAssociation(ctx, &task.ImageRetryTask{
		SkuID:     42,
		SkuName:   "Default",
		RemoteURL: failed.RemoteURL,
		FileName:  failed.LocalFileName,
		Sequence:  failed.Sequence,
		IsMain:    failed.IsMain,
	})
	if err != nil {
		t.Fatalf("RetryAssociation: %v", err)
	}

	if report.TotalAssociated != 1 || report.TotalFailed != 0 {
		t.Fatalf("report after retry = %d associated, %d failed, want 1/0",
			report.TotalAssociated, report.TotalFailed)
	}
	associated, failedTotal := e.Totals()
	if associated != 1 || failedTotal != 0 {
		t.Fatalf("Totals = (%d, %d), want (1, 0)", associated, failedTotal)
	}
}
