package models

// FileRef points at a stored artifact. Key is the store's identity for the
// object; URL is whatever the store hands back for retrieval.
type FileRef struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

func (f FileRef) IsZero() bool { return f.Key == "" }

// Upload is an artifact on its way into the file store.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

func (u Upload) Size() int64 { return int64(len(u.Data)) }

func (u Upload) IsEmpty() bool { return len(u.Data) == 0 }
