package config

// mergeMaps merges override into base. Nested maps merge key by key; any
// other value in override replaces the one in base.
func mergeMaps(base, override map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		overrideMap, ok := v.(map[string]interface{})
		if !ok {
			result[k] = v
			continue
		}
		if baseMap, ok := result[k].(map[string]interface{}); ok {
			result[k] = mergeMaps(baseMap, overrideMap)
			continue
		}
		result[k] = overrideMap
	}
	return result
}
