// Package common holds the small set of cross-layer types shared between the
// resolution engine, its infrastructure adapters, and the query interfaces.
package common

import (
	"time"

	"github.com/google/uuid"
)

// ID is a string alias for UUID v4, used to identify resolution runs and
// published events.
type ID string

// NewID returns a freshly generated random ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// Pagination defines parameters for paginated list requests on the query API.
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total,omitempty"`
}

// ErrorDetail provides structured error information for API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// APIResponse is the generic wrapper for all query-API responses.
type APIResponse[T any] struct {
	Success    bool         `json:"success"`
	Data       T            `json:"data,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
	Pagination *Pagination  `json:"pagination,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// HealthStatus indicates the health of a component or service.
type HealthStatus string

const (
	HealthOK       HealthStatus = "ok"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)
