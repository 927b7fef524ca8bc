package inference

// TestResult is the JSON document written at the end of a benchmark run.
type TestResult struct {

	// Test Configs
	ResultFormatVersion string `json:"ResultFormatVersion"`
	Requests            uint64 `json:"Requests"`
	BatchSize           int    `json:"BatchSize"`
	Workers             uint   `json:"Workers"`
	MaxRps              uint64 `json:"MaxRps"`

	// Test Description
	TestDescription string `json:"TestDescription"`

	StartTime      int64 `json:"StartTime"`
	EndTime        int64 `json:"EndTime"`
	DurationMillis int64 `json:"DurationMillis"`

	// Totals
	Totals map[string]interface{} `json:"Totals"`

	// Overall Rates
	OverallRates map[string]interface{} `json:"OverallRates"`

	// Overall Quantiles
	OverallQuantiles map[string]interface{} `json:"OverallQuantiles"`
}
