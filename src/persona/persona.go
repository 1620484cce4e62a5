// Package persona holds the read-only agent persona table.
package persona

// Persona is a named configuration bundle describing one AI agent's behavior.
type Persona struct {
	ID           string `json:"id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	SystemPrompt string `json:"system_prompt" validate:"required"`
	Tone         string `json:"tone"`
	MaxTokens    int    `json:"max_tokens" validate:"min=1"`
}

// Registry resolves persona identifiers to their configuration. It is built
// once at startup and never mutated afterwards.
type Registry struct {
	byID map[string]Persona
}

// NewRegistry creates a registry from a persona list. Later entries with a
// duplicate ID override earlier ones.
func NewRegistry(personas []Persona) *Registry {
	byID := make(map[string]Persona, len(personas))
	for _, p := range personas {
		byID[p.ID] = p
	}
	return &Registry{byID: byID}
}

// Lookup returns the persona for the given identifier.
func (r *Registry) Lookup(id string) (Persona, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// IDs returns all registered persona identifiers.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}

// DefaultPersonas returns the personas shipped with the application.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			ID:   "adoption-consultant",
			Name: "领养顾问小爪",
			SystemPrompt: "你是宠物领养平台的智能领养顾问「小爪」。你熟悉猫狗等常见宠物的领养流程、" +
				"申请条件、家访要求和领养后的适应期照顾。回答要简短、友善、实用，" +
				"不确定的内容要建议用户咨询平台工作人员，不要编造领养政策。",
			Tone:      "亲切、耐心，偶尔使用爪印或宠物相关的表情符号",
			MaxTokens: 512,
		},
		{
			ID:   "health-assistant",
			Name: "健康助手毛毛",
			SystemPrompt: "你是宠物领养平台的健康咨询助手「毛毛」。你可以解答宠物日常护理、饮食、" +
				"疫苗和常见行为问题。你不是兽医：遇到疑似疾病或紧急情况，必须明确建议" +
				"用户尽快就医，不要给出诊断或用药建议。",
			Tone:      "专业、温和、克制",
			MaxTokens: 512,
		},
	}
}
