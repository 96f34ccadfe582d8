package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vtex/migrator/internal/catalog"
	"vtex/migrator/internal/config"
	"vtex/migrator/internal/crawler"
	"vtex/migrator/internal/domain"
	"vtex/migrator/internal/domain/task"
	"vtex/migrator/internal/extract"
	"vtex/migrator/internal/queue"
	"vtex/migrator/internal/repository"
	"vtex/migrator/internal/state"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const executionCheckpoint = "execution"

// maxRetryAttempts bounds the retry queue: a unit of work that fails this
// many times is dropped with an error log instead of cycling forever.
const maxRetryAttempts = 3

const pipelineConsumer = "pipeline"

// executionState is the run-level checkpoint: which URLs were discovered,
// what was extracted, and which products the execution stage already
// finished. The stage-internal state (category tree, brands, products,
// images) lives in the components' own checkpoints.
type executionState struct {
	RunID     string                  `json:"run_id"`
	URLs      []string                `json:"urls"`
	Extracted []*domain.ProductRecord `json:"extracted"`
	Processed map[string]bool         `json:"processed"`
}

// Pipeline coordinates the migration stages in order: discovery,
// extraction, reporting/approval, execution. Each stage checkpoints its
// progress so an interrupted run resumes where it stopped.
type Pipeline struct {
	cfg          *config.Config
	discovery    *crawler.Discovery
	fetcher      *crawler.Fetcher
	extractor    extract.Extractor
	resolver     *catalog.Resolver
	brands       *catalog.BrandRegistry
	materializer *catalog.Materializer
	enricher     *catalog.Enricher
	retryQueue   queue.Queue
	checkpoints  state.Manager
	repo         repository.MigrationRepository
	approver     Approver

	run executionState
}

func NewPipeline(
	cfg *config.Config,
	discovery *crawler.Discovery,
	fetcher *crawler.Fetcher,
	extractor extract.Extractor,
	resolver *catalog.Resolver,
	brands *catalog.BrandRegistry,
	materializer *catalog.Materializer,
	enricher *catalog.Enricher,
	retryQueue queue.Queue,
	checkpoints state.Manager,
	repo repository.MigrationRepository,
	approver Approver,
) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		discovery:    discovery,
		fetcher:      fetcher,
		extractor:    extractor,
		resolver:     resolver,
		brands:       brands,
		materializer: materializer,
		enricher:     enricher,
		retryQueue:   retryQueue,
		checkpoints:  checkpoints,
		repo:         repo,
		approver:     approver,
	}
}

// Stage names accepted by Run. Each stage implies the ones before it;
// already-checkpointed stages are skipped, so "execute" on a resumed run
// does not re-crawl.
const (
	StageDiscover = "discover"
	StageExtract  = "extract"
	StageReport   = "report"
	StageAll      = "all"
)

// Run executes the pipeline up to and including the named stage.
func (p *Pipeline) Run(ctx context.Context, stage string) error {
	switch stage {
	case StageDiscover, StageExtract, StageReport, StageAll:
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}

	if err := p.restore(ctx); err != nil {
		return err
	}
	log.Infof("🚀 Starting migration run %s", p.run.RunID)

	if err := p.discoverStage(ctx); err != nil {
		return err
	}
	if stage == StageDiscover {
		return nil
	}

	if err := p.extractStage(ctx); err != nil {
		return err
	}
	if stage == StageExtract {
		return nil
	}

	preview := p.preview()
	if stage == StageReport || p.cfg.Pipeline.DryRun {
		log.Info("Stopping before any catalog mutation")
		log.Info(preview)
		return nil
	}

	approved, err := p.approver.Approve(ctx, preview)
	if err != nil {
		return fmt.Errorf("approval gate: %w", err)
	}
	if !approved {
		log.Warn("🛑 Migration not approved, stopping")
		return nil
	}

	if err := p.executeStage(ctx); err != nil {
		return err
	}
	return p.finish(ctx)
}

func (p *Pipeline) restore(ctx context.Context) error {
	var saved executionState
	found, err := p.checkpoints.Load(ctx, executionCheckpoint, &saved)
	if err != nil {
		return fmt.Errorf("load execution checkpoint: %w", err)
	}
	if found {
		p.run = saved
		log.Infof("🔄 Resuming run %s: %d URLs, %d extracted, %d processed",
			saved.RunID, len(saved.URLs), len(saved.Extracted), len(saved.Processed))
	} else {
		p.run = executionState{RunID: uuid.NewString()}
	}
	if p.run.Processed == nil {
		p.run.Processed = make(map[string]bool)
	}
	return nil
}

func (p *Pipeline) discoverStage(ctx context.Context) error {
	if len(p.run.URLs) > 0 {
		log.Infof("Discovery already done: %d URLs", len(p.run.URLs))
		return nil
	}

	urls, err := p.discovery.ProductURLs(ctx, p.cfg.Pipeline.PageLimit)
	if err != nil {
		return fmt.Errorf("discovery stage: %w", err)
	}
	if len(urls) == 0 {
		return fmt.Errorf("discovery stage: no product URLs found")
	}
	if sample := p.cfg.Pipeline.SampleSize; sample > 0 && len(urls) > sample {
		log.Infof("Sampling %d of %d discovered URLs", sample, len(urls))
		urls = urls[:sample]
	}

	p.run.URLs = urls
	p.persist(ctx)
	log.Infof("✅ Discovery done: %d product URLs", len(urls))
	return nil
}

func (p *Pipeline) extractStage(ctx context.Context) error {
	extracted := make(map[string]bool, len(p.run.Extracted))
	for _, record := range p.run.Extracted {
		extracted[record.URL] = true
	}

	for _, pageURL := range p.run.URLs {
		if extracted[pageURL] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := p.fetchAndExtract(ctx, pageURL)
		if err != nil {
			p.enqueueExtractRetry(ctx, pageURL, 0, err)
			continue
		}
		p.run.Extracted = append(p.run.Extracted, record)
		p.persist(ctx)
	}

	if err := p.drainExtractRetries(ctx); err != nil {
		return err
	}
	log.Infof("✅ Extraction done: %d/%d pages yielded records", len(p.run.Extracted), len(p.run.URLs))
	return nil
}

func (p *Pipeline) fetchAndExtract(ctx context.Context, pageURL string) (*domain.ProductRecord, error) {
	html, err := p.fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	record, err := p.extractor.Extract(ctx, html, pageURL)
	if err != nil {
		return nil, err
	}
	if err := extract.ValidateRecord(record); err != nil {
		return nil, err
	}
	return record, nil
}

func (p *Pipeline) enqueueExtractRetry(ctx context.Context, pageURL string, attempt int, cause error) {
	if p.retryQueue == nil || attempt+1 >= maxRetryAttempts {
		log.Errorf("❌ Giving up on %s after %d attempts: %v", pageURL, attempt+1, cause)
		return
	}
	retry := &task.ExtractRetryTask{URL: pageURL, RetryCount: attempt + 1, Error: cause.Error()}
	if _, err := p.retryQueue.AddTask(ctx, retry); err != nil {
		log.Errorf("❌ Failed to enqueue extract retry for %s: %v", pageURL, err)
		return
	}
	log.Warnf("🔄 Queued %s for retry (attempt %d): %v", pageURL, attempt+1, cause)
}

// drainExtractRetries re-processes failed pages sequentially until the
// stream is empty. Pages that keep failing cycle back with an incremented
// count until maxRetryAttempts drops them.
func (p *Pipeline) drainExtractRetries(ctx context.Context) error {
	return p.drainStream(ctx, (&task.ExtractRetryTask{}).TaskType(), func(data []byte) error {
		retry, err := task.UnmarshalTask[*task.ExtractRetryTask]([]byte(data))
		if err != nil {
			return fmt.Errorf("unmarshal extract retry task: %w", err)
		}

		record, err := p.fetchAndExtract(ctx, retry.URL)
		if err != nil {
			p.enqueueExtractRetry(ctx, retry.URL, retry.RetryCount, err)
			return nil
		}
		p.run.Extracted = append(p.run.Extracted, record)
		p.persist(ctx)
		return nil
	})
}

func (p *Pipeline) drainImageRetries(ctx context.Context) error {
	return p.drainStream(ctx, (&task.ImageRetryTask{}).TaskType(), func(data []byte) error {
		retry, err := task.UnmarshalTask[*task.ImageRetryTask]([]byte(data))
		if err != nil {
			return fmt.Errorf("unmarshal image retry task: %w", err)
		}

		if err := p.enricher.RetryAssociation(ctx, retry); err != nil {
			if retry.RetryCount+1 >= maxRetryAttempts {
				log.Errorf("❌ Giving up on image %s for SKU %d: %v", retry.FileName, retry.SkuID, err)
				return nil
			}
			retry.RetryCount++
			if _, addErr := p.retryQueue.AddTask(ctx, retry); addErr != nil {
				log.Errorf("❌ Failed to re-enqueue image retry: %v", addErr)
			}
		}
		return nil
	})
}

func (p *Pipeline) drainStream(ctx context.Context, taskType string, handle func(data []byte) error) error {
	if p.retryQueue == nil {
		return nil
	}
	stream := p.retryQueue.StreamName(taskType)
	group := p.cfg.Redis.ConsumerGroup

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := p.retryQueue.GetTask(ctx, group, pipelineConsumer, stream)
		if err != nil {
			return fmt.Errorf("read retry stream %s: %w", stream, err)
		}
		if msg == nil {
			return nil
		}

		data, ok := msg.Values["task_data"].(string)
		if !ok {
			log.Errorf("❌ Malformed message %s on %s, acking and skipping", msg.ID, stream)
		} else if err := handle([]byte(data)); err != nil {
			log.Errorf("❌ Failed to process retry message %s: %v", msg.ID, err)
		}

		if err := p.retryQueue.AckTask(ctx, stream, group, msg.ID); err != nil {
			return fmt.Errorf("ack message %s: %w", msg.ID, err)
		}
	}
}

func (p *Pipeline) preview() string {
	brands := make(map[string]bool)
	paths := make(map[string]bool)
	skus := 0
	images := 0
	for _, record := range p.run.Extracted {
		if record.Brand.Name != "" {
			brands[strings.ToLower(record.Brand.Name)] = true
		}
		var names []string
		for _, seg := range record.Categories {
			names = append(names, seg.Name)
		}
		if len(names) > 0 {
			paths[strings.Join(names, " > ")] = true
		}
		skus += len(record.Skus)
		images += len(record.Images)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Migration preview (run %s):\n", p.run.RunID)
	fmt.Fprintf(&b, "  products:        %d\n", len(p.run.Extracted))
	fmt.Fprintf(&b, "  skus:            %d\n", skus)
	fmt.Fprintf(&b, "  images:          %d\n", images)
	fmt.Fprintf(&b, "  category paths:  %d\n", len(paths))
	fmt.Fprintf(&b, "  brands:          %d\n", len(brands))
	fmt.Fprintf(&b, "  inventory:       %d units per warehouse", p.cfg.Pipeline.InventoryQuantity)
	return b.String()
}

func (p *Pipeline) executeStage(ctx context.Context) error {
	if err := p.resolver.Restore(ctx); err != nil {
		return err
	}
	if err := p.brands.Restore(ctx); err != nil {
		return err
	}
	if err := p.materializer.Restore(ctx); err != nil {
		return err
	}
	if err := p.enricher.Restore(ctx); err != nil {
		return err
	}

	for i, record := range p.run.Extracted {
		if p.run.Processed[record.URL] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Infof("📦 [%d/%d] Migrating %q", i+1, len(p.run.Extracted), record.Product.Name)
		if err := p.migrateRecord(ctx, record); err != nil {
			return err
		}
		p.run.Processed[record.URL] = true
		p.persist(ctx)
	}

	return p.drainImageRetries(ctx)
}

// migrateRecord runs one product through category resolution, brand
// resolution, materialization, image enrichment, activation, price and
// inventory, in that order. Per-product failures skip the product; only
// infrastructure errors abort the run.
func (p *Pipeline) migrateRecord(ctx context.Context, record *domain.ProductRecord) error {
	categoryID, err := p.resolver.EnsureResolved(ctx, record.Categories)
	if err != nil {
		log.Warnf("Skipping %q: cannot resolve category path %v (known departments: %v): %v",
			record.Product.Name, segmentNames(record.Categories), p.resolver.DepartmentNames(), err)
		return nil
	}

	brandID, err := p.brands.Resolve(ctx, record.Brand.Name)
	if err != nil {
		if errors.Is(err, catalog.ErrNoBrand) {
			log.Warnf("Skipping %q: no usable brand (%q)", record.Product.Name, record.Brand.Name)
		} else {
			log.Warnf("Skipping %q: brand resolution failed: %v", record.Product.Name, err)
		}
		return nil
	}

	product, err := p.materializer.MaterializeProduct(ctx, record, categoryID, brandID)
	if err != nil {
		if errors.Is(err, catalog.ErrUnrecoverableConflict) {
			log.Warnf("Skipping %q: %v", record.Product.Name, err)
			return nil
		}
		log.Warnf("Skipping %q: %v", record.Product.Name, err)
		return nil
	}

	skuRecords := record.Skus
	if len(skuRecords) == 0 {
		// Single-variant product with no explicit SKU data.
		skuRecords = []domain.SkuRecord{{Name: record.Product.Name}}
	}

	for _, skuRecord := range skuRecords {
		p.migrateSku(ctx, product, skuRecord, record.Images)
	}
	return nil
}

// migrateSku walks one SKU through the fixed order: create, associate
// images, activate, price, inventory. Each step failure is terminal for
// that step only; later steps still run where the invariants allow it.
func (p *Pipeline) migrateSku(ctx context.Context, product *domain.MaterializedProduct, skuRecord domain.SkuRecord, imageURLs []string) {
	sku, err := p.materializer.MaterializeSku(ctx, product, skuRecord)
	if err != nil {
		log.Warnf("Skipping SKU %q of %q: %v", skuRecord.Name, product.Name, err)
		return
	}

	report := p.enricher.EnrichSku(ctx, sku.RemoteID, sku.Name, imageURLs)
	if report.TotalAssociated > 0 {
		p.materializer.NoteImagesAssociated(ctx, sku, report.TotalAssociated)
	}

	if err := p.materializer.ActivateSku(ctx, sku); err != nil {
		if errors.Is(err, catalog.ErrSkuNotReady) {
			log.Warnf("SKU %d stays inactive: no image could be associated", sku.RemoteID)
		} else {
			log.Warnf("Failed to activate SKU %d: %v", sku.RemoteID, err)
		}
	}

	if err := p.materializer.ApplyPrice(ctx, sku.RemoteID, skuRecord); err != nil {
		log.Warnf("Failed to set price for SKU %d: %v", sku.RemoteID, err)
	}
	if err := p.materializer.ApplyInventory(ctx, sku.RemoteID); err != nil {
		log.Warnf("Failed to set inventory for SKU %d: %v", sku.RemoteID, err)
	}
}

func (p *Pipeline) finish(ctx context.Context) error {
	departments, categories := p.resolver.CreatedCounts()
	products, skus := p.materializer.CreatedCounts()
	associated, failed := p.enricher.Totals()

	skipped := 0
	for _, record := range p.run.Extracted {
		if _, ok := p.materializer.Lookup(record.URL); !ok {
			skipped++
		}
	}

	summary := &domain.RunSummary{
		RunID:              p.run.RunID,
		DepartmentsCreated: departments,
		CategoriesCreated:  categories,
		BrandsCreated:      p.brands.Created(),
		ProductsCreated:    products,
		SkusCreated:        skus,
		ImagesAssociated:   associated,
		ImagesFailed:       failed,
		ProductsSkipped:    skipped,
	}

	if p.repo != nil {
		if err := p.repo.SaveRunSummary(ctx, summary); err != nil {
			log.Errorf("❌ Failed to persist run summary: %v", err)
		}
		for _, record := range p.run.Extracted {
			if product, ok := p.materializer.Lookup(record.URL); ok {
				if err := p.repo.SaveProduct(ctx, product); err != nil {
					log.Errorf("❌ Failed to persist product report for %s: %v", record.URL, err)
				}
			}
		}
	}

	if err := p.checkpoints.Clear(ctx, executionCheckpoint); err != nil {
		log.Warnf("Failed to clear execution checkpoint: %v", err)
	}

	log.Infof("✅ Run %s complete: %d departments, %d categories, %d brands, %d products, %d SKUs created; %d images associated (%d failed); %d products skipped",
		summary.RunID, departments, categories, summary.BrandsCreated, products, skus, associated, failed, skipped)
	return nil
}

func (p *Pipeline) persist(ctx context.Context) {
	if err := p.checkpoints.Save(ctx, executionCheckpoint, p.run); err != nil {
		log.Warnf("Failed to persist execution checkpoint: %v", err)
	}
}

func segmentNames(segs []domain.CategoryPathSegment) []string {
	names := make([]string, 0, len(segs))
	for _, seg := range segs {
		names = append(names, seg.Name)
	}
	return names
}
