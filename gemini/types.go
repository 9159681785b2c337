package gemini

// Wire types for the generateContent REST endpoint. Field names follow
// the provider's JSON exactly; only the shapes this application consumes
// are modeled.

// Content is one conversation entry: a role plus its text parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

// GenerateRequest is the request body for models/{model}:generateContent.
type GenerateRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
	ToolConfig        *ToolConfig       `json:"toolConfig,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Tool declares a built-in provider tool. Only maps grounding is used here.
type Tool struct {
	GoogleMaps *GoogleMaps `json:"googleMaps,omitempty"`
}

type GoogleMaps struct{}

// ToolConfig carries per-request tool settings, such as the location hint
// for maps retrieval.
type ToolConfig struct {
	RetrievalConfig *RetrievalConfig `json:"retrievalConfig,omitempty"`
}

type RetrievalConfig struct {
	LatLng *LatLng `json:"latLng,omitempty"`
}

type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

// GenerateResponse is the response envelope. A non-nil Error means the
// request was rejected even when HTTP status was readable.
type GenerateResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	Error         *APIError      `json:"error,omitempty"`
}

type Candidate struct {
	Content           Content            `json:"content"`
	FinishReason      string             `json:"finishReason,omitempty"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

type GroundingMetadata struct {
	GroundingChunks []GroundingChunk `json:"groundingChunks,omitempty"`
}

// GroundingChunk is one citation fragment. Exactly one of the payload
// fields is set; chunks without a Maps payload are not place references.
type GroundingChunk struct {
	Web  *WebChunk  `json:"web,omitempty"`
	Maps *MapsChunk `json:"maps,omitempty"`
}

type WebChunk struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

// MapsChunk is a place reference. The provider populates URI on most
// responses but older tool versions emit GoogleMapsURI instead; both are
// accepted downstream. Text carries the formatted address when present.
type MapsChunk struct {
	URI                string              `json:"uri,omitempty"`
	GoogleMapsURI      string              `json:"googleMapsUri,omitempty"`
	Title              string              `json:"title,omitempty"`
	Text               string              `json:"text,omitempty"`
	PlaceID            string              `json:"placeId,omitempty"`
	PlaceAnswerSources *PlaceAnswerSources `json:"placeAnswerSources,omitempty"`
}

type PlaceAnswerSources struct {
	ReviewSnippets []ReviewSnippet `json:"reviewSnippets,omitempty"`
}

type ReviewSnippet struct {
	Review        string `json:"review,omitempty"`
	GoogleMapsURI string `json:"googleMapsUri,omitempty"`
	Title         string `json:"title,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount int `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount,omitempty"`
}

type APIError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}
