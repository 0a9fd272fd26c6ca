package domain

// WorkItem is a priced construction work item from the external vector corpus.
type WorkItem struct {
	Score       float64  `json:"score"`
	RateCode    string   `json:"rate_code"`
	Name        string   `json:"name"`
	Unit        string   `json:"unit"`
	PriceMedian *float64 `json:"price_median"`
	PriceMin    *float64 `json:"price_min"`
	PriceMax    *float64 `json:"price_max"`
	LaborHours  float64  `json:"labor_hours"`
	Department  string   `json:"department"`
	Category    string   `json:"category"`
}

type WorkItemFilter struct {
	Department string
	PriceMin   *float64
	PriceMax   *float64
}

type SearchRequest struct {
	Query            string   `json:"query"`
	Language         string   `json:"language"`
	Limit            int      `json:"limit"`
	FilterDepartment string   `json:"filter_department,omitempty"`
	PriceMin         *float64 `json:"price_min,omitempty"`
	PriceMax         *float64 `json:"price_max,omitempty"`
}

type SearchResponse struct {
	Query        string     `json:"query"`
	Language     string     `json:"language"`
	TotalResults int        `json:"total_results"`
	Results      []WorkItem `json:"results"`
}

type CollectionInfo struct {
	Language    string `json:"language"`
	Collection  string `json:"collection"`
	PointsCount int64  `json:"points_count"`
	Status      string `json:"status"`
}
