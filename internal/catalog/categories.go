package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// CategoryAll id псевдо-категории, которая пропускает все товары
const CategoryAll = "all"

// Category элемент фильтра по категориям
type Category struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Icon string `yaml:"icon" json:"icon"`
}

//go:embed categories.yaml
var categoriesYAML []byte

// Categories разбирает встроенный список категорий
func Categories() ([]Category, error) {
	return ParseCategories(categoriesYAML)
}

// ParseCategories разбирает YAML список категорий; первой должна идти "all"
func ParseCategories(data []byte) ([]Category, error) {
	var cats []Category
	if err := yaml.Unmarshal(data, &cats); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	if len(cats) == 0 || cats[0].ID != CategoryAll {
		return nil, fmt.Errorf("categories must start with %q", CategoryAll)
	}
	seen := make(map[string]struct{}, len(cats))
	for _, c := range cats {
		if c.ID == "" {
			return nil, fmt.Errorf("category with empty id")
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return cats, nil
}
