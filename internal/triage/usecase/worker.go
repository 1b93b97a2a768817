package usecase

import (
	"context"
	"log"
	"time"
)

const (
	extractBatchSize  = 10
	classifyBatchSize = 10
	draftBatchSize    = 10

	// When no attachments are pending the extract loop slows down.
	extractIdleInterval = 5 * time.Second

	slaSweepInterval = 1 * time.Minute
)

// PipelineWorker drives the four poll loops (ingest, extract, classify,
// draft) plus the SLA sweep. Each loop runs in its own goroutine; a
// failing pass is logged and retried on the next tick.
type PipelineWorker struct {
	ingestion      *IngestionUsecase
	extraction     *ExtractionUsecase
	classification *ClassificationUsecase
	drafting       *DraftUsecase
	sla            *SLAUsecase

	ingestInterval   time.Duration
	extractInterval  time.Duration
	classifyInterval time.Duration
	draftInterval    time.Duration

	stopChan chan struct{}
}

// NewPipelineWorker creates a new PipelineWorker
func NewPipelineWorker(
	ingestion *IngestionUsecase,
	extraction *ExtractionUsecase,
	classification *ClassificationUsecase,
	drafting *DraftUsecase,
	sla *SLAUsecase,
	ingestInterval, extractInterval, classifyInterval, draftInterval time.Duration,
) *PipelineWorker {
	return &PipelineWorker{
		ingestion:        ingestion,
		extraction:       extraction,
		classification:   classification,
		drafting:         drafting,
		sla:              sla,
		ingestInterval:   ingestInterval,
		extractInterval:  extractInterval,
		classifyInterval: classifyInterval,
		draftInterval:    draftInterval,
		stopChan:         make(chan struct{}),
	}
}

// Start begins all worker loops
func (w *PipelineWorker) Start() {
	log.Printf("[Worker] Starting pipeline workers (ingest: %s, extract: %s, classify: %s, draft: %s)",
		w.ingestInterval, w.extractInterval, w.classifyInterval, w.draftInterval)

	go w.runIngestLoop()
	go w.runExtractLoop()
	go w.runClassifyLoop()
	go w.runDraftLoop()
	go w.runSLALoop()
}

// Stop gracefully stops all worker loops
func (w *PipelineWorker) Stop() {
	close(w.stopChan)
	log.Println("[Worker] Pipeline workers stopped")
}

func (w *PipelineWorker) runIngestLoop() {
	w.ingestOnce()

	ticker := time.NewTicker(w.ingestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.ingestOnce()
		case <-w.stopChan:
			return
		}
	}
}

// runExtractLoop polls fast while there is work and backs off when the
// queue is empty.
func (w *PipelineWorker) runExtractLoop() {
	for {
		interval := w.extractInterval
		result, err := w.extraction.Run(context.Background(), extractBatchSize)
		if err != nil {
			log.Printf("[Worker] Extraction pass failed: %v", err)
			interval = extractIdleInterval
		} else if result.Processed == 0 {
			interval = extractIdleInterval
		}

		select {
		case <-time.After(interval):
		case <-w.stopChan:
			return
		}
	}
}

func (w *PipelineWorker) runClassifyLoop() {
	ticker := time.NewTicker(w.classifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.classification.Run(context.Background(), classifyBatchSize); err != nil {
				log.Printf("[Worker] Classification pass failed: %v", err)
			}
		case <-w.stopChan:
			return
		}
	}
}

func (w *PipelineWorker) runDraftLoop() {
	ticker := time.NewTicker(w.draftInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.drafting.Run(context.Background(), draftBatchSize); err != nil {
				log.Printf("[Worker] Draft pass failed: %v", err)
			}
		case <-w.stopChan:
			return
		}
	}
}

func (w *PipelineWorker) runSLALoop() {
	ticker := time.NewTicker(slaSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.sla.Sweep(context.Background()); err != nil {
				log.Printf("[Worker] SLA sweep failed: %v", err)
			}
		case <-w.stopChan:
			return
		}
	}
}

func (w *PipelineWorker) ingestOnce() {
	result, err := w.ingestion.Run(context.Background())
	if err != nil {
		log.Printf("[Worker] Ingestion pass failed: %v", err)
		return
	}
	if result.Messages > 0 {
		log.Printf("[Worker] Ingested %d messages (%d attachments) across %d inboxes",
			result.Messages, result.Attachments, result.Inboxes)
	}
}
