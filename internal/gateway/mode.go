package gateway

// Resolve classifies req. Vision iff an image is attached with a non-empty
// filename. Whether the bytes decode is checked later by the PromptBuilder.
func Resolve(req InferenceRequest) Mode {
	if req.Image != nil && req.Image.Filename != "" {
		return Vision
	}
	return TextOnly
}
