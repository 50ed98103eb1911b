package transfer

type KnowledgeCreation struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type GenerateRequest struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
}
