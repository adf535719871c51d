package types

// LocalModel is an entry in the router's local model table.
type LocalModel struct {
	// Name the router matches against the request's model field.
	// example: qwen3-1.7b-quantized
	Name string `json:"name" yaml:"name" toml:"name" example:"qwen3-1.7b-quantized"`
	// Directory that holds the model on disk. A leading '~' is expanded.
	// example: ~/models/quantized/qwen3-1.7b-quantized
	Path string `json:"path" yaml:"path" toml:"path" example:"~/models/quantized/qwen3-1.7b-quantized"`
	// Free-form label for the runtime that would serve the model.
	// example: llama.cpp-like-api
	Backend string `json:"backend" yaml:"backend" toml:"backend" example:"llama.cpp-like-api"`
	// Endpoint a local runtime would expose. Informational only.
	// example: http://localhost:8083/v1/chat/completions
	APIURL string `json:"api_url" yaml:"api_url" toml:"api_url" example:"http://localhost:8083/v1/chat/completions"`
}

// LocalModelStatus is a LocalModel plus whether its path currently exists.
type LocalModelStatus struct {
	LocalModel
	Available bool `json:"available"`
}

// QuantizeRequest describes one quantization run.
type QuantizeRequest struct {
	ModelName string `json:"model_name"`
	OutputDir string `json:"output_dir"`
	QuantType string `json:"quant_type"`
}
