package workflow

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// Payload is the kind-specific data carried by a node. The set of
// implementations is closed: InputData, LLMData and OutputData.
type Payload interface {
	Kind() NodeKind
	merge(nodeID string, patch gjson.Result) (Payload, error)
}

const (
	DefaultModelName   = "gpt-3.5-turbo"
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.5
)

// ─── input ───────────────────────────────────────────────────────────────────

// InputData holds the last text entered into the Input node.
type InputData struct {
	Text string `json:"text"`
}

func (InputData) Kind() NodeKind { return KindInput }

func (d InputData) merge(nodeID string, patch gjson.Result) (Payload, error) {
	if v := patch.Get("text"); v.Exists() {
		s, err := patchString(nodeID, "text", v)
		if err != nil {
			return nil, err
		}
		d.Text = s
	}
	return d, nil
}

// ─── llm ─────────────────────────────────────────────────────────────────────

// LLMData is the completion configuration held by the LLM node.
type LLMData struct {
	ModelName   string
	APIBase     string
	APIKey      string
	MaxTokens   int
	Temperature float64

	// keySet records apiKeySet from decoded JSON, where the key itself is
	// never present.
	keySet bool
}

// DefaultLLMData returns the configuration a new LLM node starts with.
func DefaultLLMData() LLMData {
	return LLMData{
		ModelName:   DefaultModelName,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
}

func (LLMData) Kind() NodeKind { return KindLLM }

type llmDataWire struct {
	ModelName   string  `json:"modelName"`
	APIBase     string  `json:"apiBase"`
	APIKeySet   bool    `json:"apiKeySet"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

// APIKeySet reports whether a key is configured.
func (d LLMData) APIKeySet() bool { return d.APIKey != "" || d.keySet }

// MarshalJSON never emits the API key, only whether one is set.
func (d LLMData) MarshalJSON() ([]byte, error) {
	return json.Marshal(llmDataWire{d.ModelName, d.APIBase, d.APIKeySet(), d.MaxTokens, d.Temperature})
}

// UnmarshalJSON reads the form written by MarshalJSON. The decoded value
// carries no key, so it cannot be used to run a completion.
func (d *LLMData) UnmarshalJSON(b []byte) error {
	var w llmDataWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*d = LLMData{
		ModelName:   w.ModelName,
		APIBase:     w.APIBase,
		MaxTokens:   w.MaxTokens,
		Temperature: w.Temperature,
		keySet:      w.APIKeySet,
	}
	return nil
}

func (d LLMData) merge(nodeID string, patch gjson.Result) (Payload, error) {
	for field, dst := range map[string]*string{
		"modelName": &d.ModelName,
		"apiBase":   &d.APIBase,
		"apiKey":    &d.APIKey,
	} {
		v := patch.Get(field)
		if !v.Exists() {
			continue
		}
		s, err := patchString(nodeID, field, v)
		if err != nil {
			return nil, err
		}
		*dst = s
	}
	if patch.Get("apiKey").Exists() {
		d.keySet = false
	}

	if v := patch.Get("maxTokens"); v.Exists() {
		if v.Type != gjson.Number || v.Num != math.Trunc(v.Num) || v.Num <= 0 || v.Num > math.MaxInt32 {
			return nil, &InvalidPatchError{NodeID: nodeID, Field: "maxTokens", Reason: "must be a positive integer"}
		}
		d.MaxTokens = int(v.Int())
	}
	if v := patch.Get("temperature"); v.Exists() {
		if v.Type != gjson.Number || v.Num < 0 || v.Num > 1 {
			return nil, &InvalidPatchError{NodeID: nodeID, Field: "temperature", Reason: "must be a number between 0 and 1"}
		}
		d.Temperature = v.Num
	}
	return d, nil
}

// ─── output ──────────────────────────────────────────────────────────────────

// OutputData holds the last completion text; Output is nil until a run
// has written to it.
type OutputData struct {
	Output *string `json:"output"`
}

func (OutputData) Kind() NodeKind { return KindOutput }

// Text returns the output, or "" when none has been received.
func (d OutputData) Text() string {
	if d.Output == nil {
		return ""
	}
	return *d.Output
}

func (d OutputData) merge(nodeID string, patch gjson.Result) (Payload, error) {
	v := patch.Get("output")
	if !v.Exists() {
		return d, nil
	}
	if v.Type == gjson.Null {
		d.Output = nil
		return d, nil
	}
	s, err := patchString(nodeID, "output", v)
	if err != nil {
		return nil, err
	}
	d.Output = &s
	return d, nil
}

// ─── decoding ────────────────────────────────────────────────────────────────

// decodePayload decodes raw into the payload variant for kind k.
func decodePayload(k NodeKind, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultPayload(k), nil
	}
	switch k {
	case KindInput:
		var d InputData
		err := json.Unmarshal(raw, &d)
		return d, err
	case KindLLM:
		var d LLMData
		err := json.Unmarshal(raw, &d)
		return d, err
	case KindOutput:
		var d OutputData
		err := json.Unmarshal(raw, &d)
		return d, err
	}
	return nil, &UnknownKindError{Name: string(k)}
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func patchString(nodeID, field string, v gjson.Result) (string, error) {
	if v.Type != gjson.String {
		return "", &InvalidPatchError{NodeID: nodeID, Field: field, Reason: "must be a string"}
	}
	return v.Str, nil
}

// applyPatch merges a partial JSON object into p. Fields belonging to other
// kinds are ignored.
func applyPatch(nodeID string, p Payload, patch []byte) (Payload, error) {
	if !gjson.ValidBytes(patch) {
		return nil, &InvalidPatchError{NodeID: nodeID, Reason: "patch is not valid JSON"}
	}
	root := gjson.ParseBytes(patch)
	if !root.IsObject() {
		return nil, &InvalidPatchError{NodeID: nodeID, Reason: fmt.Sprintf("patch must be a JSON object, got %s", root.Type)}
	}
	return p.merge(nodeID, root)
}
