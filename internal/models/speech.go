package models

// TranscribeResponse is the JSON payload for POST /transcribe.
type TranscribeResponse struct {
	Text                 string  `json:"text"`
	Language             string  `json:"language"`
	InferenceTimeSeconds float64 `json:"inference_time_seconds"`
	AudioDurationSeconds float64 `json:"audio_duration_seconds"`
	ModelUsed            string  `json:"model_used"`
}

// AlignedWord is a single word with its time span in the source audio.
type AlignedWord struct {
	Word      string  `json:"word"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// AlignResponse is the JSON payload for POST /align.
type AlignResponse struct {
	Words                []AlignedWord `json:"words"`
	InferenceTimeSeconds float64       `json:"inference_time_seconds"`
	ModelUsed            string        `json:"model_used"`
}

// QualityWindow carries the five quality dimensions for one audio window.
// All scores are clamped to [1, 5].
type QualityWindow struct {
	WindowStart   float64 `json:"window_start"`
	WindowEnd     float64 `json:"window_end"`
	MOS           float64 `json:"mos"`
	Noisiness     float64 `json:"noisiness"`
	Discontinuity float64 `json:"discontinuity"`
	Coloration    float64 `json:"coloration"`
	Loudness      float64 `json:"loudness"`
}

// QualityResponse is the JSON payload for POST /assess-quality. AverageMOS
// is the duration-weighted mean of the per-window MOS dimension.
type QualityResponse struct {
	Windows              []QualityWindow `json:"windows"`
	AverageMOS           float64         `json:"average_mos"`
	InferenceTimeSeconds float64         `json:"inference_time_seconds"`
}

// ModelStatus reports on-disk availability of a single model.
type ModelStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Path      string `json:"path"`
	SizeBytes *int64 `json:"size_bytes,omitempty"`
}

// HealthResponse is the JSON payload for GET /health.
type HealthResponse struct {
	Status    string        `json:"status"`
	Models    []ModelStatus `json:"models"`
	ModelsDir string        `json:"models_dir"`
}
