package types

// TaskStatus is the lifecycle state of one asynchronous processing job.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed
}

// Task tracks one submitted document through the pipeline. Mutated only by
// the task coordinator.
type Task struct {
	ID             string         `bson:"id" json:"id"`
	FilePath       string         `bson:"file_path" json:"file_path"`
	Options        ProcessOptions `bson:"options" json:"options"`
	Status         TaskStatus     `bson:"status" json:"status"`
	Error          string         `bson:"error,omitempty" json:"error,omitempty"`
	Result         *ProcessResult `bson:"result,omitempty" json:"result,omitempty"`
	TotalPages     int            `bson:"total_pages" json:"total_pages"`
	ProcessedPages int            `bson:"processed_pages" json:"processed_pages"`
	CreatedAt      int64          `bson:"created_at" json:"created_at"`
	FinishedAt     int64          `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
}

// TaskEvent is pushed to websocket subscribers as a task moves through
// the pipeline.
type TaskEvent struct {
	TaskID         string     `json:"task_id"`
	Status         TaskStatus `json:"status"`
	Stage          string     `json:"stage,omitempty"`
	TotalPages     int        `json:"total_pages,omitempty"`
	ProcessedPages int        `json:"processed_pages,omitempty"`
	Error          string     `json:"error,omitempty"`
}
