package syncengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultUpdateWorkers = 8

type pendingCreate struct {
	index int
	spec  CreateSpec
}

type pendingUpdate struct {
	index      int
	internalID string
	spec       UpdateSpec
}

// syncEntityType runs the write pass for one entity type: classify every
// record, bucket into creates and updates, execute the create bucket as one
// batched insert and the update bucket through the bounded worker pool.
func (s *Service) syncEntityType(ctx context.Context, tenantID TenantID, source string, adapter EntityAdapter, payloads []RecordPayload, options SyncOptions) (*BulkSyncResult, error) {
	started := s.clock()

	pre, err := s.prefetch(ctx, tenantID, source, adapter, payloads)
	if err != nil {
		return nil, err
	}

	syncedAt := s.clock().UTC()
	result := &BulkSyncResult{Records: make([]SyncRecord, len(payloads))}
	var creates []pendingCreate
	var updates []pendingUpdate
	classificationErrors := 0

	for index, payload := range payloads {
		decided := classifyRecord(adapter, payload, pre)
		record := SyncRecord{ExternalID: decided.externalID}

		switch decided.action {
		case ActionError:
			record.Action = ActionError
			record.Error = decided.message
			classificationErrors++
		case ActionUnchanged:
			if options.SkipUnchanged {
				record.Action = ActionSkipped
				record.InternalID = decided.existing.InternalID
			} else {
				updates = append(updates, pendingUpdate{
					index:      index,
					internalID: decided.existing.InternalID,
					spec: UpdateSpec{
						Payload:  payload,
						Resolved: decided.resolved,
						SyncHash: decided.hash,
						SyncedAt: syncedAt,
					},
				})
			}
		case ActionCreate:
			internalID, err := s.idProvider.NewID()
			if err != nil {
				s.logError(opExecute, "id_generation_failed", err,
					zap.String("tenant_id", tenantID.String()),
					zap.String("entity_type", string(adapter.Type())))
				return nil, newServiceError(opExecute, "id_generation_failed", err)
			}
			creates = append(creates, pendingCreate{
				index: index,
				spec: CreateSpec{
					InternalID: internalID,
					TenantID:   tenantID.String(),
					Source:     source,
					ExternalID: decided.externalID,
					Payload:    payload,
					Resolved:   decided.resolved,
					SyncHash:   decided.hash,
					SyncedAt:   syncedAt,
				},
			})
		case ActionUpdate:
			updates = append(updates, pendingUpdate{
				index:      index,
				internalID: decided.existing.InternalID,
				spec: UpdateSpec{
					Payload:  payload,
					Resolved: decided.resolved,
					SyncHash: decided.hash,
					SyncedAt: syncedAt,
				},
			})
		}
		result.Records[index] = record
	}

	if classificationErrors > 0 && !options.ContinueOnError {
		// The caller asked for all-or-nothing: report the classification
		// errors, mark everything else aborted, execute no writes.
		for index := range result.Records {
			if result.Records[index].Action == "" {
				result.Records[index].Action = ActionError
				result.Records[index].Error = "batch aborted: errors present and continue_on_error disabled"
			}
		}
		s.finishResult(result, started)
		return result, nil
	}

	s.executeCreates(ctx, adapter, creates, options.BatchSize, result)
	s.executeUpdates(ctx, tenantID, adapter, updates, result)

	s.finishResult(result, started)
	return result, nil
}

// executeCreates writes the whole create set in one batched insert. The batch
// succeeds or fails as a unit: the store cannot report which rows of a failed
// batch went in, so every pending create is marked with the same error.
func (s *Service) executeCreates(ctx context.Context, adapter EntityAdapter, creates []pendingCreate, batchSize int, result *BulkSyncResult) {
	if len(creates) == 0 {
		return
	}
	if batchSize <= 0 {
		batchSize = DefaultSyncOptions().BatchSize
	}

	specs := make([]CreateSpec, 0, len(creates))
	for _, pending := range creates {
		specs = append(specs, pending.spec)
	}

	if err := adapter.InsertBatch(ctx, specs, batchSize); err != nil {
		message := fmt.Sprintf("batch insert failed: %v", err)
		if isConflictError(err) {
			message = fmt.Sprintf("duplicate external key: %v", err)
		}
		s.logError(opExecute, "batch_insert_failed", err,
			zap.String("entity_type", string(adapter.Type())),
			zap.Int("batch_size", len(creates)))
		for _, pending := range creates {
			result.Records[pending.index].Action = ActionError
			result.Records[pending.index].Error = message
		}
		return
	}

	for _, pending := range creates {
		result.Records[pending.index].Action = ActionCreated
		result.Records[pending.index].InternalID = pending.spec.InternalID
	}
}

// executeUpdates fans the update set out over the worker pool. Every record
// succeeds or fails on its own; updates address disjoint internal ids, so no
// ordering between them is required.
func (s *Service) executeUpdates(ctx context.Context, tenantID TenantID, adapter EntityAdapter, updates []pendingUpdate, result *BulkSyncResult) {
	if len(updates) == 0 {
		return
	}

	workers := s.updateWorkers
	if workers <= 0 {
		workers = defaultUpdateWorkers
	}
	semaphore := make(chan struct{}, workers)
	var waitGroup sync.WaitGroup

	for _, pending := range updates {
		waitGroup.Add(1)
		semaphore <- struct{}{}
		go func(pending pendingUpdate) {
			defer waitGroup.Done()
			defer func() { <-semaphore }()

			// Each goroutine writes a distinct record index.
			if err := adapter.UpdateRecord(ctx, tenantID.String(), pending.internalID, pending.spec); err != nil {
				s.logError(opExecute, "update_failed", err,
					zap.String("entity_type", string(adapter.Type())),
					zap.String("internal_id", pending.internalID))
				result.Records[pending.index].Action = ActionError
				result.Records[pending.index].Error = fmt.Sprintf("update failed: %v", err)
				return
			}
			result.Records[pending.index].Action = ActionUpdated
			result.Records[pending.index].InternalID = pending.internalID
		}(pending)
	}
	waitGroup.Wait()
}

func (s *Service) finishResult(result *BulkSyncResult, started time.Time) {
	for _, record := range result.Records {
		switch record.Action {
		case ActionCreated:
			result.Created++
		case ActionUpdated:
			result.Updated++
		case ActionSkipped:
			result.Skipped++
		case ActionError:
			result.Errors++
		}
	}
	result.DurationMillis = s.clock().Sub(started).Milliseconds()
}
