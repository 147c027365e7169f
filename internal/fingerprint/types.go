package fingerprint

// HashInfo is the CLI/JSON view of one hashed file.
type HashInfo struct {
	Path        string `json:"path"`
	Fingerprint int64  `json:"hash"`
	Hex         string `json:"hex"`
	Error       string `json:"error,omitempty"`
}

// HashInfoBatch represents multiple hashed files for batch output.
type HashInfoBatch struct {
	Files  []HashInfo `json:"files"`
	Count  int        `json:"count"`
	Failed int        `json:"failed"`
}

// NewHashInfo builds the output record for a hashing result.
func NewHashInfo(path string, r Result) HashInfo {
	if r.Err != nil {
		return HashInfo{Path: path, Error: r.Err.Error()}
	}
	return HashInfo{
		Path:        path,
		Fingerprint: int64(r.Fingerprint),
		Hex:         r.Fingerprint.Hex(),
	}
}
