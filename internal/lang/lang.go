package lang

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"
	"text/template"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"gopkg.in/yaml.v3"
)

const defaultLang = "en"

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	mu       sync.RWMutex
	lang     = defaultLang
	catalogs map[string]map[string]string
	loadOnce sync.Once
	loadErr  error
)

// SetupLang selects the reply language. Unknown languages fall back to English.
func SetupLang(language string) error {
	if err := load(); err != nil {
		return err
	}

	language = strings.ToLower(strings.TrimSpace(language))
	mu.Lock()
	defer mu.Unlock()
	if _, ok := catalogs[language]; !ok {
		logutils.Log.WithField("lang", language).Warn("Unsupported language, falling back to English")
		language = defaultLang
	}
	lang = language
	return nil
}

// Current returns the active language code.
func Current() string {
	mu.RLock()
	defer mu.RUnlock()
	return lang
}

// Translate renders the message for key in the active language. data fills the
// {{.Field}} placeholders. A missing key is returned as is.
func Translate(key string, data map[string]any) string {
	if err := load(); err != nil {
		return key
	}

	mu.RLock()
	msg, ok := catalogs[lang][key]
	if !ok {
		msg, ok = catalogs[defaultLang][key]
	}
	mu.RUnlock()

	if !ok {
		logutils.Log.WithField("key", key).Warn("Message not found")
		return key
	}
	if !strings.Contains(msg, "{{") {
		return msg
	}

	tmpl, err := template.New(key).Option("missingkey=zero").Parse(msg)
	if err != nil {
		logutils.Log.WithError(err).WithField("key", key).Error("Invalid message template")
		return msg
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		logutils.Log.WithError(err).WithField("key", key).Error("Failed to render message")
		return msg
	}
	return buf.String()
}

func load() error {
	loadOnce.Do(func() {
		catalogs, loadErr = loadCatalogs()
	})
	return loadErr
}

func loadCatalogs() (map[string]map[string]string, error) {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	result := make(map[string]map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		data, err := localeFS.ReadFile(path.Join("locales", name))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", name, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", name, err)
		}
		messages := make(map[string]string)
		flatten("", tree, messages)
		result[strings.TrimSuffix(name, path.Ext(name))] = messages
	}
	return result, nil
}

// flatten turns nested sections into dotted keys: error.download_failed.
func flatten(prefix string, tree map[string]any, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch value := v.(type) {
		case map[string]any:
			flatten(key, value, out)
		case string:
			out[key] = value
		default:
			out[key] = fmt.Sprint(value)
		}
	}
}
