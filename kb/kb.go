// Package kb загружает базу знаний бота: дерево проблемных категорий
// (casos_soporte) и справочник политик (politicas). База читается один раз
// при старте и дальше не меняется.
//
// Порядок пунктов меню - это порядок ключей в исходном JSON, а не
// алфавитный, поэтому объекты декодируются с сохранением порядка вставки.
package kb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// KnowledgeBase - корень базы знаний
type KnowledgeBase struct {
	CasosSoporte CategoryMap `json:"casos_soporte"`
	Politicas    PolicyMap   `json:"politicas"`

	raw []byte
}

// Category - проблемная категория верхнего уровня
type Category struct {
	Titulo     string         `json:"titulo"`
	Categorias SubcategoryMap `json:"categorias"`
}

// Subcategory - конкретный сценарий с шагами самопомощи
type Subcategory struct {
	Titulo             string        `json:"titulo"`
	Pasos              []string      `json:"pasos"`
	TituloConfirmacion string        `json:"titulo_confirmacion"`
	OpcionesFinales    []FinalOption `json:"opciones_finales,omitempty"`
}

// FinalOption - запасной шаг, который предлагается перед эскалацией
type FinalOption struct {
	Titulo      string `json:"titulo"`
	Descripcion string `json:"descripcion"`
}

// Policy - текст политики компании
type Policy struct {
	Titulo    string `json:"titulo"`
	Contenido string `json:"contenido"`
}

// Load читает и разбирает базу знаний из файла
func Load(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение базы знаний: %w", err)
	}
	return Parse(data)
}

// Parse разбирает базу знаний из JSON
func Parse(data []byte) (*KnowledgeBase, error) {
	var base KnowledgeBase
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("разбор базы знаний: %w", err)
	}
	base.raw = append([]byte(nil), data...)
	return &base, nil
}

// Raw возвращает исходный JSON базы - виджет забирает его как есть,
// чтобы порядок пунктов меню совпадал с авторским
func (b *KnowledgeBase) Raw() []byte { return b.raw }

// decodeOrdered обходит JSON-объект токен за токеном, отдавая пары
// (ключ, сырое значение) в порядке их появления в документе.
func decodeOrdered(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("ожидался JSON-объект, получено %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("некорректный ключ объекта: %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}

	// закрывающая скобка
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// CategoryMap - упорядоченное отображение ключ → категория
type CategoryMap struct {
	keys  []string
	items map[string]*Category
}

// UnmarshalJSON сохраняет порядок ключей исходного объекта
func (m *CategoryMap) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.items = make(map[string]*Category)
	return decodeOrdered(data, func(key string, raw json.RawMessage) error {
		var cat Category
		if err := json.Unmarshal(raw, &cat); err != nil {
			return fmt.Errorf("категория %q: %w", key, err)
		}
		m.keys = append(m.keys, key)
		m.items[key] = &cat
		return nil
	})
}

// Keys возвращает ключи в порядке вставки
func (m *CategoryMap) Keys() []string { return m.keys }

// Get возвращает категорию по ключу
func (m *CategoryMap) Get(key string) (*Category, bool) {
	cat, ok := m.items[key]
	return cat, ok
}

// Len возвращает число категорий
func (m *CategoryMap) Len() int { return len(m.keys) }

// SubcategoryMap - упорядоченное отображение ключ → подкатегория
type SubcategoryMap struct {
	keys  []string
	items map[string]*Subcategory
}

func (m *SubcategoryMap) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.items = make(map[string]*Subcategory)
	return decodeOrdered(data, func(key string, raw json.RawMessage) error {
		var sub Subcategory
		if err := json.Unmarshal(raw, &sub); err != nil {
			return fmt.Errorf("подкатегория %q: %w", key, err)
		}
		m.keys = append(m.keys, key)
		m.items[key] = &sub
		return nil
	})
}

func (m *SubcategoryMap) Keys() []string { return m.keys }

func (m *SubcategoryMap) Get(key string) (*Subcategory, bool) {
	sub, ok := m.items[key]
	return sub, ok
}

func (m *SubcategoryMap) Len() int { return len(m.keys) }

// PolicyMap - упорядоченное отображение ключ → политика
type PolicyMap struct {
	keys  []string
	items map[string]*Policy
}

func (m *PolicyMap) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.items = make(map[string]*Policy)
	return decodeOrdered(data, func(key string, raw json.RawMessage) error {
		var pol Policy
		if err := json.Unmarshal(raw, &pol); err != nil {
			return fmt.Errorf("политика %q: %w", key, err)
		}
		m.keys = append(m.keys, key)
		m.items[key] = &pol
		return nil
	})
}

func (m *PolicyMap) Keys() []string { return m.keys }

func (m *PolicyMap) Get(key string) (*Policy, bool) {
	pol, ok := m.items[key]
	return pol, ok
}

func (m *PolicyMap) Len() int { return len(m.keys) }

// Subcategory ищет подкатегорию по паре ключей
func (b *KnowledgeBase) Subcategory(categoryKey, subcategoryKey string) (*Subcategory, bool) {
	cat, ok := b.CasosSoporte.Get(categoryKey)
	if !ok {
		return nil, false
	}
	return cat.Categorias.Get(subcategoryKey)
}
