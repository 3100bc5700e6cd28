package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusFailed  JobStatus = "failed"
)

// Job - задача в очереди (таблица jobs)
type Job struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Type        string          `json:"type" db:"type"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	DedupKey    *string         `json:"dedup_key,omitempty" db:"dedup_key"`
	Status      JobStatus       `json:"status" db:"status"`
	Attempts    int             `json:"attempts" db:"attempts"`
	MaxAttempts int             `json:"max_attempts" db:"max_attempts"`
	LastError   *string         `json:"last_error,omitempty" db:"last_error"`
	AvailableAt time.Time       `json:"available_at" db:"available_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// VariantsJobType - тип задачи генерации вариантов
const VariantsJobType = "variants_process"

// VariantsJobPayload - полезная нагрузка задачи генерации вариантов
type VariantsJobPayload struct {
	AssetID        int64    `json:"assetId"`
	DefinitionRef  string   `json:"definitionRef"`
	DefinitionArgs []string `json:"definitionArgs"`
}
