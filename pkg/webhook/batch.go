package webhook

import (
	"context"
	"sync"
)

// BatchRequest bounds one triggerCareWorkflowBatch call.
type BatchRequest struct {
	URL       string
	Secret    string
	Payloads  []Payload
	TimeoutMS int
	Retries   int
	BatchSize int
}

// BatchResult summarizes a batch delivery. Errors holds one entry per failed
// payload, in the order the concurrent deliveries finished.
type BatchResult struct {
	Sent    int
	Skipped int
	Failed  int
	Errors  []string
}

// TriggerCareWorkflowBatch fires every accepted payload concurrently, capped
// by both the client's process-wide semaphore and req.BatchSize. Payloads
// beyond BatchSize are counted as Skipped, not queued. Never returns an
// error; every outcome is in the BatchResult.
func (c *Client) TriggerCareWorkflowBatch(ctx context.Context, req BatchRequest) BatchResult {
	batchSize := defaultBatchSize
	if req.BatchSize > 0 {
		batchSize = req.BatchSize
	}

	accepted := req.Payloads
	skipped := 0
	if len(accepted) > batchSize {
		skipped = len(accepted) - batchSize
		accepted = accepted[:batchSize]
		c.logger.Warn("webhook batch exceeds batch size, dropping remainder",
			"batch_size", batchSize, "skipped", skipped)
	}

	var (
		mu     sync.Mutex
		sent   int
		failed int
		errs   []string
		wg     sync.WaitGroup
	)

	for _, payload := range accepted {
		wg.Add(1)
		go func(p Payload) {
			defer wg.Done()
			result := c.TriggerCareWorkflow(ctx, Request{
				URL:       req.URL,
				Secret:    req.Secret,
				Payload:   p,
				TimeoutMS: req.TimeoutMS,
				Retries:   req.Retries,
			})

			mu.Lock()
			defer mu.Unlock()
			if result.Success {
				sent++
			} else {
				failed++
				errs = append(errs, p.EventID+": "+result.Error)
			}
		}(payload)
	}
	wg.Wait()

	return BatchResult{Sent: sent, Skipped: skipped, Failed: failed, Errors: errs}
}
