package task

// ExtractRetryTask records a product page whose fetch or extraction
// failed. Drained sequentially at the end of the extraction stage.
type ExtractRetryTask struct {
	URL        string `json:"url"`
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error"`
}

func (t *ExtractRetryTask) TaskType() string {
	return "ExtractRetryTask"
}

func (t *ExtractRetryTask) TaskValue() ([]byte, error) {
	return marshalTask(t)
}
