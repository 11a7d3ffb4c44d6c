package metrics

import (
	"time"

	"papercrumpler/internal/models"
)

// Recorder is the metrics surface used by the print pipeline.
type Recorder interface {
	ItemReceived()
	ItemPrinted(elapsed time.Duration)
	ItemFailed(reason models.FailureReason)
	NotificationReceived(kind string)
}

// PipelineRecorder writes pipeline events to a Registry.
type PipelineRecorder struct {
	registry *Registry
}

// NewPipelineRecorder returns a recorder bound to r, or to the global
// registry when r is nil.
func NewPipelineRecorder(r *Registry) *PipelineRecorder {
	if r == nil {
		r = globalRegistry
	}
	return &PipelineRecorder{registry: r}
}

func (p *PipelineRecorder) ItemReceived() {
	p.registry.IncrementCounter(ItemsReceived, nil, "Pending items seen by the consumer")
}

func (p *PipelineRecorder) ItemPrinted(elapsed time.Duration) {
	p.registry.IncrementCounter(ItemsPrinted, nil, "Items accepted by the print sink")
	p.registry.RecordTimer(PrintDuration, elapsed, nil)
}

func (p *PipelineRecorder) ItemFailed(reason models.FailureReason) {
	p.registry.IncrementCounter(ItemsFailed, map[string]string{"reason": string(reason)}, "Items that did not complete the pipeline")
}

func (p *PipelineRecorder) NotificationReceived(kind string) {
	p.registry.IncrementCounter(NotificationsTotal, map[string]string{"kind": kind}, "Change notifications handled")
}
