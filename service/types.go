package service

type InterrogateRequest struct {
	Image     string   `json:"image"`
	Model     string   `json:"model"`
	Threshold *float32 `json:"threshold" binding:"omitempty,gte=0,lte=1"`
}

type InterrogateResponse struct {
	Caption map[string]float32 `json:"caption"`
}

type InterrogatorsResponse struct {
	Models []string `json:"models"`
}

type BatchRequest struct {
	SrcDir string `json:"src_dir"`
	DstDir string `json:"dst_dir"`
	Model  string `json:"model"`
}

type BatchResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const (
	DefaultThreshold float32 = 0.35

	MsgNoImages  = "No images to interrogate"
	MsgCompleted = "Interrogation completed"
)
