// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package i18n holds the message catalog for command output. Messages are
// flat dotted ids in locales/active.<lang>.yaml and are formatted with fmt
// verbs after lookup.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	loadOnce  sync.Once
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
)

func loadBundle() {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
	files, err := fs.Glob(localeFS, "locales/*.yaml")
	if err != nil {
		return
	}
	for _, name := range files {
		data, err := localeFS.ReadFile(name)
		if err != nil {
			continue
		}
		// A broken catalog falls back to message ids rather than failing startup.
		_, _ = bundle.ParseMessageFileBytes(data, path.Base(name))
	}
}

// Init selects the output language. Unknown languages resolve to English.
func Init(lang string) {
	loadOnce.Do(loadBundle)
	localizer = i18n.NewLocalizer(bundle, lang, language.English.String())
}

// Supported lists the languages that have a catalog.
func Supported() []string {
	loadOnce.Do(loadBundle)
	tags := bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.String())
	}
	return out
}

// T looks up messageID and formats it with args. The id itself is returned
// when no catalog has the message.
func T(messageID string, args ...any) string {
	if localizer == nil {
		Init(language.English.String())
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		msg = messageID
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
