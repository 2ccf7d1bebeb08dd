package api

import "github.com/datarhei/srtrelay/config/vars"

// ConfigVariable is a configuration value with its description. Secrets are
// disguised.
type ConfigVariable struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	EnvName     string `json:"env_name,omitempty"`
	Description string `json:"description"`
	Merged      bool   `json:"from_env"`
}

// Unmarshal converts a config variable
func (v *ConfigVariable) Unmarshal(variable vars.Variable) {
	v.Name = variable.Name
	v.Value = variable.Value
	v.EnvName = variable.EnvName
	v.Description = variable.Description
	v.Merged = variable.Merged
}
