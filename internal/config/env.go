package config

import (
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "TASKEXPLORER_"

// envMapping maps environment variables to setting paths.
var envMapping = map[string]string{
	EnvPrefix + "GROUP_BY_NAME": "explorer.groupByName",
	EnvPrefix + "SEPARATOR":     "explorer.separator",
	EnvPrefix + "EXCLUDE_TYPES": "explorer.excludeTypes",
	EnvPrefix + "EXPANSION":     "explorer.expansion",
}

// envLayer builds the environment layer. Empty values are kept; an empty
// separator is how name grouping is disabled from the shell.
func envLayer(lookup func(string) (string, bool)) map[string]any {
	m := make(map[string]any)
	for env, path := range envMapping {
		val, ok := lookup(env)
		if !ok {
			continue
		}
		_ = setPath(m, path, parseEnvValue(path, val))
	}
	return m
}

func parseEnvValue(path, val string) any {
	switch path {
	case "explorer.groupByName":
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
		return val
	case "explorer.excludeTypes":
		out := []any{}
		for _, s := range splitList(val) {
			out = append(out, s)
		}
		return out
	default:
		return val
	}
}
