package settings

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// SeedEntry — одна строка начального заполнения system_settings.
type SeedEntry struct {
	Key         string `yaml:"key"`
	Value       string `yaml:"value"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
}

// DefaultSeed разбирает встроенный defaults.yaml.
func DefaultSeed() ([]SeedEntry, error) {
	return ParseSeed(defaultsYAML)
}

// ParseSeed разбирает YAML-список настроек. Пустой ключ или дубликат — ошибка.
func ParseSeed(data []byte) ([]SeedEntry, error) {
	var entries []SeedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("ошибка разбора YAML настроек: %w", err)
	}

	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("настройка #%d без ключа", i+1)
		}
		if _, dup := seen[e.Key]; dup {
			return nil, fmt.Errorf("настройка %q объявлена дважды", e.Key)
		}
		seen[e.Key] = struct{}{}
	}
	return entries, nil
}

// Values превращает список в карту ключ → значение.
func Values(entries []SeedEntry) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out
}
