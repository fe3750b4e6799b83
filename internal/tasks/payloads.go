package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// This file defines the "types" and "payloads" for our async tasks.

// Task type names
const (
	TypeTaskRunResearch    = "task:run_research"
	TypeTaskPublishRecord  = "task:publish_record"
	TypeTaskPublishPending = "task:publish_pending"
)

// --- RunResearch Task ---

// RunResearchPayload is the data a research job needs to run
type RunResearchPayload struct {
	RecordID uint `json:"record_id"`
}

// NewRunResearchTask creates a new task for asynq
func NewRunResearchTask(recordID uint) (*asynq.Task, error) {
	payload := RunResearchPayload{RecordID: recordID}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TypeTaskRunResearch, payloadBytes), nil
}

// --- PublishRecord Task ---

// PublishRecordPayload identifies the record to publish to Notion
type PublishRecordPayload struct {
	RecordID uint `json:"record_id"`
}

// NewPublishRecordTask creates a new task for asynq
func NewPublishRecordTask(recordID uint) (*asynq.Task, error) {
	payload := PublishRecordPayload{RecordID: recordID}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TypeTaskPublishRecord, payloadBytes), nil
}

// NewPublishPendingTask creates the periodic sweep task that re-enqueues
// completed records that were never published
func NewPublishPendingTask() *asynq.Task {
	return asynq.NewTask(TypeTaskPublishPending, []byte("{}"))
}
