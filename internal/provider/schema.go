package provider

type FieldType string

const (
	FieldString FieldType = "string"
	FieldSecret FieldType = "secret"
	FieldBool   FieldType = "bool"
	FieldNumber FieldType = "number"
	FieldEnum   FieldType = "enum"
)

// FieldSchema describes one claim parameter field.
type FieldSchema struct {
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Example     any       `json:"example,omitempty"`
}

// ConfigSchema describes the parameters a claim for this provider accepts.
type ConfigSchema struct {
	Version int                    `json:"version"`
	Fields  map[string]FieldSchema `json:"fields"`
}
