package task

// ImageRetryTask records an image whose association with a SKU failed
// after re-hosting succeeded. The re-hosted URL is kept so the retry does
// not download or upload the image again.
type ImageRetryTask struct {
	SkuID      int64  `json:"sku_id"`
	SkuName    string `json:"sku_name"`
	RemoteURL  string `json:"remote_url"`
	FileName   string `json:"file_name"`
	Sequence   int    `json:"sequence"`
	IsMain     bool   `json:"is_main"`
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error"`
}

func (t *ImageRetryTask) TaskType() string {
	return "ImageRetryTask"
}

func (t *ImageRetryTask) TaskValue() ([]byte, error) {
	return marshalTask(t)
}
