package worker

// FileTask identifies one candidate FIT file
type FileTask struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
}

// Config contains processor configuration
type Config struct {
	AthleteID    uint64
	UploadClient string
}
