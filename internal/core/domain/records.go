package domain

import "time"

type Material struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Quantity   float64   `json:"quantity"`
	Unit       string    `json:"unit"`
	Price      float64   `json:"price"`
	Supplier   *string   `json:"supplier"`
	ProjectID  *int64    `json:"project_id"`
	Category   string    `json:"category"`
	SourceFile *string   `json:"source_file"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MaterialPatch carries a partial update; nil fields are left untouched.
type MaterialPatch struct {
	Name       *string  `json:"name"`
	Quantity   *float64 `json:"quantity"`
	Unit       *string  `json:"unit"`
	Price      *float64 `json:"price"`
	Supplier   *string  `json:"supplier"`
	ProjectID  *int64   `json:"project_id"`
	Category   *string  `json:"category"`
	SourceFile *string  `json:"source_file"`
}

type MaterialFilter struct {
	Skip      int
	Limit     int
	Category  string
	ProjectID *int64
	Query     string
}

type MaterialSummary struct {
	TotalMaterials  int                `json:"total_materials"`
	TotalValue      float64            `json:"total_value"`
	ByCategory      map[string]int     `json:"by_category"`
	ValueByCategory map[string]float64 `json:"value_by_category"`
	Suppliers       []string           `json:"suppliers"`
}

type ProjectStatus string

const (
	ProjectPending    ProjectStatus = "pending"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPending, ProjectInProgress, ProjectCompleted, ProjectCancelled:
		return true
	default:
		return false
	}
}

type Project struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Status         ProjectStatus `json:"status"`
	Progress       int           `json:"progress"`
	Deadline       *time.Time    `json:"deadline"`
	Description    *string       `json:"description"`
	MaterialsCount int           `json:"materials_count"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type ProjectPatch struct {
	Name        *string        `json:"name"`
	Status      *ProjectStatus `json:"status"`
	Progress    *int           `json:"progress"`
	Deadline    *time.Time     `json:"deadline"`
	Description *string        `json:"description"`
}

type ProjectFilter struct {
	Skip   int
	Limit  int
	Status ProjectStatus
}

type ProjectStats struct {
	TotalProjects   int                   `json:"total_projects"`
	ByStatus        map[ProjectStatus]int `json:"by_status"`
	AverageProgress float64               `json:"average_progress"`
	TotalMaterials  int                   `json:"total_materials"`
}

type ReportType string

const (
	ReportBOQ           ReportType = "boq"
	ReportCostEstimate  ReportType = "cost_estimate"
	ReportMaterialsList ReportType = "materials_list"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportBOQ, ReportCostEstimate, ReportMaterialsList:
		return true
	default:
		return false
	}
}

type ReportStatus string

const (
	ReportCompleted ReportStatus = "completed"
	ReportFailed    ReportStatus = "failed"
)

type LineItem struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

type Report struct {
	ID                   int64        `json:"id"`
	Name                 string       `json:"name"`
	ProjectID            *int64       `json:"project_id"`
	Type                 ReportType   `json:"type"`
	Status               ReportStatus `json:"status"`
	Error                string       `json:"error,omitempty"`
	Region               string       `json:"region"`
	RegionalMultiplier   float64      `json:"regional_multiplier"`
	RegionalAdjustedCost float64      `json:"regional_adjusted_cost"`
	IncludeVAT           bool         `json:"include_vat"`
	Materials            []LineItem   `json:"materials"`
	BaseCost             float64      `json:"base_cost"`
	VATRate              float64      `json:"vat_rate"`
	VATAmount            float64      `json:"vat_amount"`
	TotalCost            float64      `json:"total_cost"`
	Currency             string       `json:"currency"`
	CreatedAt            time.Time    `json:"created_at"`
}

type ReportFilter struct {
	Skip      int
	Limit     int
	ProjectID *int64
	Type      ReportType
}

// ReportMaterialInput accepts the loosely-typed material rows clients send.
type ReportMaterialInput struct {
	Name           *string  `json:"name"`
	Material       *string  `json:"material"`
	Quantity       *float64 `json:"quantity"`
	Unit           string   `json:"unit"`
	EstimatedPrice *float64 `json:"estimated_price"`
	Price          *float64 `json:"price"`
	Cost           *float64 `json:"cost"`
}

type ReportInput struct {
	Name       string                `json:"name"`
	ProjectID  *int64                `json:"project_id"`
	Type       ReportType            `json:"type"`
	IncludeVAT *bool                 `json:"include_vat"`
	Region     string                `json:"region"`
	Materials  []ReportMaterialInput `json:"materials"`
}

type ReportArtifact struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}
