package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadInto merges the layered config for env (see LoadLayers) and decodes the
// result into out, which must be a pointer to a yaml-tagged struct.
func LoadInto(env, configDir string, out any) error {
	merged, err := LoadLayers(env, configDir)
	if err != nil {
		return err
	}

	// map -> yaml -> struct，沿用 yaml tag 和 Duration 的解析
	b, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to re-encode merged config: %w", err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to decode merged config: %w", err)
	}
	return nil
}

// LoadLayers 读取 configDir 下的 base.yaml，叠加 <env>.yaml（可选），
// 再用 secrets.env（可选）替换 ${VAR} 占位符。configDir 默认 "config"
func LoadLayers(env, configDir string) (map[string]any, error) {
	if configDir == "" {
		configDir = "config"
	}

	base, err := readYAML(filepath.Join(configDir, "base.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load base.yaml: %w", err)
	}

	merged := base
	if env != "" && env != "base" {
		overlay, err := readYAML(filepath.Join(configDir, env+".yaml"))
		switch {
		case err == nil:
			merged = mergeMaps(base, overlay)
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to load %s.yaml: %w", env, err)
		}
	}

	secrets, err := readEnvFile(filepath.Join(configDir, "secrets.env"))
	switch {
	case err == nil:
		merged = substitute(merged, secrets)
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to load secrets.env: %w", err)
	}

	return merged, nil
}

func readYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m := map[string]any{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// readEnvFile parses KEY=VALUE lines; # comments and surrounding quotes are dropped.
func readEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	vars := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		vars[strings.TrimSpace(key)] = value
	}
	return vars, nil
}

// mergeMaps 返回新 map，src 覆盖 dst，嵌套 map 递归合并
func mergeMaps(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		dstMap, dstOK := out[k].(map[string]any)
		srcMap, srcOK := v.(map[string]any)
		if dstOK && srcOK {
			out[k] = mergeMaps(dstMap, srcMap)
			continue
		}
		out[k] = v
	}
	return out
}

func substitute(m map[string]any, vars map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = expand(val, vars)
		case map[string]any:
			out[k] = substitute(val, vars)
		default:
			out[k] = v
		}
	}
	return out
}

// expand 只替换 vars 里有的 ${VAR}，其余原样保留
func expand(s string, vars map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	for name, v := range vars {
		s = strings.ReplaceAll(s, "${"+name+"}", v)
	}
	return s
}
