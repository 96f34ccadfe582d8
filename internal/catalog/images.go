package catalog

import (
	"context"
	"fmt"
	"strconv"

	"vtex/migrator/internal/client"
	"vtex/migrator/internal/domain"
	"vtex/migrator/internal/domain/task"
	"vtex/migrator/internal/imagehost"
	"vtex/migrator/internal/queue"
	"vtex/migrator/internal/state"

	log "github.com/sirupsen/logrus"
)

const imagesCheckpoint = "images"

// Rehoster re-hosts one image at a stable public location and returns its
// public URL.
type Rehoster interface {
	Rehost(ctx context.Context, sourceURL, fileName string) (string, error)
}

// Enricher downloads a product's images, re-hosts them, and associates
// them with SKUs in extraction order. The first image of each SKU is the
// main one. Failures are terminal per image and recorded, never dropped.
type Enricher struct {
	gateway     client.CatalogGateway
	rehoster    Rehoster
	checkpoints state.Manager
	retryQueue  queue.Queue // may be nil

	reports map[string]*domain.SkuImageReport // keyed by SKU id

	totalAssociated int
	totalFailed     int
}

func NewEnricher(gateway client.CatalogGateway, rehoster Rehoster, checkpoints state.Manager, retryQueue queue.Queue) *Enricher {
	return &Enricher{
		gateway:     gateway,
		rehoster:    rehoster,
		checkpoints: checkpoints,
		retryQueue:  retryQueue,
		reports:     make(map[string]*domain.SkuImageReport),
	}
}

func (e *Enricher) Restore(ctx context.Context) error {
	var reports map[string]*domain.SkuImageReport
	found, err := e.checkpoints.Load(ctx, imagesCheckpoint, &reports)
	if err != nil {
		return fmt.Errorf("load images checkpoint: %w", err)
	}
	if found {
		e.reports = reports
		log.Infof("Restored images checkpoint: %d SKUs", len(reports))
	}
	return nil
}

// EnrichSku processes imageURLs for one SKU in extraction order. The
// returned report is also retained for the run summary and checkpointed.
func (e *Enricher) EnrichSku(ctx context.Context, skuID int64, skuName string, imageURLs []string) *domain.SkuImageReport {
	if existing, ok := e.reports[strconv.FormatInt(skuID, 10)]; ok && existing.TotalAssociated > 0 {
		log.Debugf("SKU %d already enriched (%d images), skipping", skuID, existing.TotalAssociated)
		return existing
	}

	report := &domain.SkuImageReport{SkuID: skuID, SkuName: skuName}

	for i, sourceURL := range imageURLs {
		sequence := i + 1
		fileName := imagehost.FileName(skuID, sequence, sourceURL)
		assoc := domain.ImageAssociation{
			SkuID:         skuID,
			Sequence:      sequence,
			LocalFileName: fileName,
			IsMain:        sequence == 1,
		}

		publicURL, err := e.rehoster.Rehost(ctx, sourceURL, fileName)
		if err != nil {
			// Terminal for this image; later images still proceed.
			assoc.Status = domain.ImageFailed
			assoc.Error = err.Error()
			log.Warnf("Failed to re-host image %d for SKU %d (%s): %v", sequence, skuID, sourceURL, err)
			e.record(report, assoc)
			continue
		}
		assoc.RemoteURL = publicURL

		err = e.gateway.AssociateImage(ctx, skuID, domain.ImageFile{
			URL:      publicURL,
			FileName: fileName,
			IsMain:   assoc.IsMain,
			Label:    skuName,
		})
		if err != nil && !client.IsConflict(err) {
			assoc.Status = domain.ImageFailed
			assoc.Error = err.Error()
			log.Warnf("Failed to associate image %s with SKU %d: %v", fileName, skuID, err)
			e.enqueueRetry(ctx, skuID, skuName, assoc)
		} else {
			// An "already associated" conflict is a success: the image is
			// there, this run simply re-ran.
			assoc.Status = domain.ImageAssociated
		}
		e.record(report, assoc)
	}

	e.reports[strconv.FormatInt(skuID, 10)] = report
	e.persist(ctx)
	return report
}

// RetryAssociation re-attempts a previously failed association using the
// already re-hosted URL.
func (e *Enricher) RetryAssociation(ctx context.Context, t *task.ImageRetryTask) error {
	err := e.gateway.AssociateImage(ctx, t.SkuID, domain.ImageFile{
		URL:      t.RemoteURL,
		FileName: t.FileName,
		IsMain:   t.IsMain,
		Label:    t.SkuName,
	})
	if err != nil && !client.IsConflict(err) {
		return fmt.Errorf("retry association of %s with sku %d: %w", t.FileName, t.SkuID, err)
	}

	if report, ok := e.reports[strconv.FormatInt(t.SkuID, 10)]; ok {
		for i := range report.Images {
			if report.Images[i].Sequence == t.Sequence && report.Images[i].Status == domain.ImageFailed {
				report.Images[i].Status = domain.ImageAssociated
				report.Images[i].Error = ""
				report.TotalAssociated++
				report.TotalFailed--
				e.totalAssociated++
				e.totalFailed--
				break
			}
		}
		e.persist(ctx)
	}
	return nil
}

func (e *Enricher) record(report *domain.SkuImageReport, assoc domain.ImageAssociation) {
	report.Images = append(report.Images, assoc)
	report.TotalProcessed++
	if assoc.Status == domain.ImageAssociated {
		report.TotalAssociated++
		e.totalAssociated++
	} else {
		report.TotalFailed++
		e.totalFailed++
	}
}

func (e *Enricher) enqueueRetry(ctx context.Context, skuID int64, skuName string, assoc domain.ImageAssociation) {
	if e.retryQueue == nil {
		return
	}
	retry := &task.ImageRetryTask{
		SkuID:     skuID,
		SkuName:   skuName,
		RemoteURL: assoc.RemoteURL,
		FileName:  assoc.LocalFileName,
		Sequence:  assoc.Sequence,
		IsMain:    assoc.IsMain,
		Error:     assoc.Error,
	}
	if _, err := e.retryQueue.AddTask(ctx, retry); err != nil {
		log.Errorf("Failed to enqueue image retry for SKU %d: %v", skuID, err)
	}
}

func (e *Enricher) persist(ctx context.Context) {
	if err := e.checkpoints.Save(ctx, imagesCheckpoint, e.reports); err != nil {
		log.Warnf("Failed to persist images checkpoint: %v", err)
	}
}

// Totals reports run-wide association counters.
func (e *Enricher) Totals() (associated, failed int) {
	return e.totalAssociated, e.totalFailed
}
