package domain

import (
	"context"
)

// ReportStore persists the list of saved reports, most recent first.
type ReportStore interface {
	Load(ctx context.Context) ([]DiagnosticReport, error)
	SaveAll(ctx context.Context, reports []DiagnosticReport) error
	AppendOne(ctx context.Context, report DiagnosticReport) error
	DeleteByID(ctx context.Context, id string) error
}

// ConsultationStore persists the consultation queue, most recent first.
type ConsultationStore interface {
	LoadConsultations(ctx context.Context) ([]ConsultationRequest, error)
	SaveConsultations(ctx context.Context, requests []ConsultationRequest) error
}

// GalleryStore persists gallery items, most recent first.
type GalleryStore interface {
	LoadGallery(ctx context.Context) ([]GalleryItem, error)
	SaveGallery(ctx context.Context, items []GalleryItem) error
}

// LabStore bundles the three collections of one storage backend.
type LabStore interface {
	ReportStore
	ConsultationStore
	GalleryStore
	Close() error
}

// Insight is the structured output of the AI analysis of a report.
type Insight struct {
	DetailedAnalysis string   `json:"detailedAnalysis"`
	ConciseSummary   string   `json:"conciseSummary"`
	Recommendations  []string `json:"recommendations,omitempty"`
}

// InsightProvider produces clinical insight for a (partial) report.
// Implementations may fail or time out.
type InsightProvider interface {
	GenerateInsight(ctx context.Context, report DiagnosticReport) (*Insight, error)
}

// ImageDescription is the AI caption of a gallery image.
type ImageDescription struct {
	Caption  string `json:"caption"`
	Category string `json:"category"`
}

// ImageAnalyzer captions clinical images.
type ImageAnalyzer interface {
	DescribeImage(ctx context.Context, data []byte, mimeType string) (*ImageDescription, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetStorageConfig() *StorageConfig
	GetAIConfig() *AIConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}
